package cache

import (
	"sync"
	"time"
)

// TTLCache is the shared response cache in front of the provider. Each entry
// carries its own TTL; the fetcher picks the tier (price 30s, snapshot 30s,
// intraday aggregates 60s, daily aggregates 15m) when it stores.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	maxEntries int

	stats  Stats
	stopCh chan struct{}
	once   sync.Once
}

type cacheEntry struct {
	value    interface{}
	expires  time.Time
	accessed time.Time
	hits     int64
}

// Stats tracks cache effectiveness for the telemetry endpoints.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	CleanupRuns int64 `json:"cleanup_runs"`
	Entries     int64 `json:"entries"`
}

// New creates a cache bounded to maxEntries and starts the background
// janitor.
func New(maxEntries int) *TTLCache {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	c := &TTLCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached value if present and unexpired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		c.stats.Misses++
		return nil, false
	}

	entry.accessed = time.Now()
	entry.hits++
	c.stats.Hits++
	return entry.value, true
}

// Set stores value under key for ttl. At capacity the least recently
// accessed entry is evicted first.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}

	now := time.Now()
	c.entries[key] = &cacheEntry{
		value:    value,
		expires:  now.Add(ttl),
		accessed: now,
	}
}

// Delete removes a single key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry and resets counters.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.stats = Stats{}
}

// Stats returns a snapshot of the counters.
func (c *TTLCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = int64(len(c.entries))
	return s
}

// Stop terminates the janitor goroutine. Safe to call more than once.
func (c *TTLCache) Stop() {
	c.once.Do(func() { close(c.stopCh) })
}

// evictLRU removes the least recently accessed entry. Caller holds the
// write lock.
func (c *TTLCache) evictLRU() {
	var oldestKey string
	oldest := time.Now().Add(time.Hour)

	for key, entry := range c.entries {
		if entry.accessed.Before(oldest) {
			oldest = entry.accessed
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

func (c *TTLCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *TTLCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
	c.stats.CleanupRuns++
}
