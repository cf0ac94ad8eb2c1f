package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/teranos/discograph/errors"
)

const backendMemory = "memory"

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a process-local cache. Expired entries are dropped when
// they are next read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an empty cache whose entries live for ttl by default.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		recordLookup(backendMemory, false, nil)
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dst); err != nil {
		recordLookup(backendMemory, false, err)
		return false, errors.Wrapf(err, "failed to decode cached %s", key)
	}
	recordLookup(backendMemory, true, nil)
	return true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	CacheWrites.WithLabelValues(backendMemory).Inc()
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
