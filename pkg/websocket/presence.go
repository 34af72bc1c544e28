package websocket

import "sync"

// Presence is the single source of truth for who is online: a bidirectional
// user-identity to connection-identity mapping with at most one connection
// per user. The map is never handed out; callers go through Bind, Unbind,
// Resolve and List.
type Presence struct {
	mu      sync.RWMutex
	entries map[string]string // userID -> connID
	order   []string          // userIDs in bind order
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[string]string)}
}

// Bind records userID as online on connID. A second bind for the same user
// overwrites the previous connection without evicting it: last writer wins.
func (p *Presence) Bind(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[userID]; !exists {
		p.order = append(p.order, userID)
	}
	p.entries[userID] = connID
}

// Unbind removes the entry for userID unconditionally. Removal is keyed by
// the user identity from the closing connection's handshake, not by reverse
// lookup of the connection identity: when a user has rebound to a newer
// connection and the stale one closes later, the live binding is cleared too.
// Known behavior, kept as is.
func (p *Presence) Unbind(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[userID]; !exists {
		return
	}
	delete(p.entries, userID)
	for i, id := range p.order {
		if id == userID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Resolve returns the current connection identity for userID.
func (p *Presence) Resolve(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	connID, ok := p.entries[userID]
	return connID, ok
}

// List returns the bound user identities in bind order. Each user appears
// exactly once regardless of how many times it rebound.
func (p *Presence) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of bound users.
func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
