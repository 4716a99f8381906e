// Package cache provides byte caches with per-entry expiry for generated
// forecasts: a Redis implementation shared across replicas and an in-process
// one for tests and single-node runs.
package cache

import (
	"context"
	"sync"
	"time"
)

// BytesCache stores raw bytes with a TTL. A miss returns ok == false and no error.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	v        []byte
	exp      time.Time
	accessed time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

// MemoryConfig holds configuration for MemoryCache.
type MemoryConfig struct {
	// MaxSize bounds the number of entries; the least recently used entry
	// is evicted when a new key would exceed it.
	// Default: 10000
	MaxSize int

	// CleanupInterval is how often expired entries are swept.
	// Default: 5 minutes
	CleanupInterval time.Duration
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryConfig)

// WithMaxSize sets MemoryConfig.MaxSize.
func WithMaxSize(n int) MemoryOption {
	return func(c *MemoryConfig) { c.MaxSize = n }
}

// WithCleanupInterval sets MemoryConfig.CleanupInterval.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.CleanupInterval = d }
}

// MemoryCache is an in-process BytesCache with TTL expiry, a background
// sweep of expired entries and LRU eviction at MaxSize. Close stops the
// sweep.
type MemoryCache struct {
	mu      sync.Mutex
	m       map[string]entry
	maxSize int
	now     func() time.Time

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates an empty in-process cache and starts its sweep.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := MemoryConfig{
		MaxSize:         10000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	c := &MemoryCache{
		m:       make(map[string]entry),
		maxSize: cfg.MaxSize,
		now:     time.Now,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// GetBytes returns a copy of the value stored under key.
func (c *MemoryCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(now) {
		delete(c.m, key)
		return nil, false, nil
	}

	e.accessed = now
	c.m[key] = e

	b := make([]byte, len(e.v))
	copy(b, e.v)
	return b, true, nil
}

// SetBytes stores value under key. A non-positive ttl never expires.
func (c *MemoryCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b := make([]byte, len(value))
	copy(b, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}

	if _, exists := c.m[key]; !exists && c.maxSize > 0 && len(c.m) >= c.maxSize {
		c.removeExpired(now)
		if len(c.m) >= c.maxSize {
			c.evictLRU()
		}
	}

	c.m[key] = entry{v: b, exp: exp, accessed: now}
	return nil
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Close stops the background sweep. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
	return nil
}

func (c *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			c.mu.Lock()
			c.removeExpired(c.now())
			c.mu.Unlock()
		}
	}
}

// removeExpired requires c.mu.
func (c *MemoryCache) removeExpired(now time.Time) {
	for key, e := range c.m {
		if e.expired(now) {
			delete(c.m, key)
		}
	}
}

// evictLRU requires c.mu.
func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, e := range c.m {
		if oldestKey == "" || e.accessed.Before(oldest) {
			oldestKey, oldest = key, e.accessed
		}
	}
	if oldestKey != "" {
		delete(c.m, oldestKey)
	}
}

var (
	_ BytesCache = (*MemoryCache)(nil)
	_ BytesCache = (*RedisCache)(nil)
)
