package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
)

type entry struct {
	record    integration.IdempotencyRecord
	expiresAt time.Time
}

// InMemoryIdempotencyCache keeps idempotency fingerprints in process memory.
// It suits single-node hubs and tests; replicas do not share it.
type InMemoryIdempotencyCache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryIdempotencyCache
type InMemoryOption func(*InMemoryIdempotencyCache)

// WithNow replaces the wall clock used for expiry
func WithNow(now func() time.Time) InMemoryOption {
	return func(c *InMemoryIdempotencyCache) { c.now = now }
}

// NewInMemoryIdempotencyCache creates the cache and starts its sweeper
func NewInMemoryIdempotencyCache(opts ...InMemoryOption) *InMemoryIdempotencyCache {
	c := &InMemoryIdempotencyCache{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.cleanupLoop(5 * time.Minute)
	return c
}

// Get returns the live record for key
func (c *InMemoryIdempotencyCache) Get(_ context.Context, key string) (*integration.IdempotencyRecord, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	record := e.record
	return &record, true, nil
}

// Put stores record under key for ttl, replacing any previous record
func (c *InMemoryIdempotencyCache) Put(_ context.Context, key string, record integration.IdempotencyRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{record: record, expiresAt: c.now().Add(ttl)}
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (c *InMemoryIdempotencyCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryIdempotencyCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryIdempotencyCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of stored entries, expired ones included until swept
func (c *InMemoryIdempotencyCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ integration.IdempotencyCache = (*InMemoryIdempotencyCache)(nil)
