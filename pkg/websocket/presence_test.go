package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceBindResolve(t *testing.T) {
	p := NewPresence()

	p.Bind("alice", "conn_1")
	connID, ok := p.Resolve("alice")
	assert.True(t, ok)
	assert.Equal(t, "conn_1", connID)

	_, ok = p.Resolve("bob")
	assert.False(t, ok)
	assert.Equal(t, 1, p.Len())
}

func TestPresenceLastWriterWins(t *testing.T) {
	p := NewPresence()

	p.Bind("alice", "conn_old")
	p.Bind("alice", "conn_new")

	connID, ok := p.Resolve("alice")
	assert.True(t, ok)
	assert.Equal(t, "conn_new", connID)

	// rebinding must not duplicate the roster entry
	assert.Equal(t, []string{"alice"}, p.List())
}

func TestPresenceUnbindByUserIdentity(t *testing.T) {
	p := NewPresence()

	p.Bind("alice", "conn_old")
	p.Bind("alice", "conn_new")

	// the stale connection closing clears the live binding too
	p.Unbind("alice")
	_, ok := p.Resolve("alice")
	assert.False(t, ok)
	assert.Empty(t, p.List())
}

func TestPresenceUnbindUnknownUser(t *testing.T) {
	p := NewPresence()
	p.Bind("alice", "conn_1")

	p.Unbind("ghost")
	assert.Equal(t, 1, p.Len())
}

func TestPresenceListOrder(t *testing.T) {
	p := NewPresence()
	p.Bind("alice", "c1")
	p.Bind("bob", "c2")
	p.Bind("carol", "c3")
	p.Unbind("bob")

	assert.Equal(t, []string{"alice", "carol"}, p.List())

	// List hands out a copy
	list := p.List()
	list[0] = "mutated"
	assert.Equal(t, []string{"alice", "carol"}, p.List())
}

func TestPresenceConcurrentAccess(t *testing.T) {
	p := NewPresence()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user_%d", n%10)
			p.Bind(user, fmt.Sprintf("conn_%d", n))
			p.Resolve(user)
			p.List()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, p.Len())
}
