package cache

import (
	"context"
	"time"
)

// Cache is the read-path cache used by the REST API.
type Cache interface {
	// Get returns the cached value, if present and not expired.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value with the given expiration.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists checks whether a key is present.
	Exists(ctx context.Context, key string) bool

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Config selects and tunes the cache backend.
type Config struct {
	// Type: "gocache" or "redis"
	Type string `json:"type" env:"CACHE_TYPE"`

	Redis RedisConfig `json:"redis"`
	Local LocalConfig `json:"local"`
}

// RedisConfig tunes the redis backend.
type RedisConfig struct {
	Addr         string        `json:"addr" env:"REDIS_ADDR"`
	Password     string        `json:"password" env:"REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REDIS_DB"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// LocalConfig tunes the in-process backend.
type LocalConfig struct {
	DefaultExpiration time.Duration `json:"default_expiration"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}
