package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/elimu/core/curriculum"
)

var nowFunc = time.Now // mockable

type memoryEntry struct {
	report    curriculum.Report
	expiresAt time.Time
}

// MemoryCache is a process-local report cache; entries expire after ttl.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

var _ curriculum.ReportCache = (*MemoryCache)(nil) // interface compliance check

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (curriculum.Report, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !nowFunc().Before(e.expiresAt) {
		return curriculum.Report{}, curriculum.ErrCacheMiss
	}
	return e.report, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r curriculum.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := nowFunc()
	// drop expired entries while we hold the lock
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{report: r, expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// NoCache never holds anything. Used when the cache TTL is 0.
type NoCache struct{}

var _ curriculum.ReportCache = NoCache{} // interface compliance check

func (NoCache) Get(context.Context, string) (curriculum.Report, error) {
	return curriculum.Report{}, curriculum.ErrCacheMiss
}

func (NoCache) Set(context.Context, string, curriculum.Report) error { return nil }

func (NoCache) Delete(context.Context, ...string) error { return nil }
