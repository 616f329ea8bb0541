package flow

import (
	"sync"
	"time"

	"github.com/oraklabs/oraklscan/internal/timeutil"
)

const (
	// per-contract records older than this are invisible to readers
	recordTTL = 2 * time.Minute
	// whole underlyings idle longer than this are evicted by the janitor
	idleEviction = 5 * time.Minute
)

// VolumeCache remembers the last-seen per-contract day volumes for each
// underlying. The flow detector diffs the current snapshot against it to
// reconstruct per-scan volume deltas. One writer per underlying; reads
// return copies and never mutate.
type VolumeCache struct {
	mu      sync.RWMutex
	entries map[string]*volumeEntry
	clock   timeutil.Clock
	stopCh  chan struct{}
	once    sync.Once
}

type volumeEntry struct {
	volumes   map[string]volumeRecord
	touchedAt time.Time
}

type volumeRecord struct {
	volume     int64
	observedAt time.Time
}

// NewVolumeCache creates the cache and starts the eviction janitor. clock
// may be nil for wall time.
func NewVolumeCache(clock timeutil.Clock) *VolumeCache {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	c := &VolumeCache{
		entries: make(map[string]*volumeEntry),
		clock:   clock,
		stopCh:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns a copy of the per-contract volumes for underlying, omitting
// records older than the record TTL. Nil when the underlying is unknown.
func (c *VolumeCache) Get(underlying string) map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[underlying]
	if !ok {
		return nil
	}

	now := c.clock.Now()
	out := make(map[string]int64, len(entry.volumes))
	for ticker, rec := range entry.volumes {
		if now.Sub(rec.observedAt) <= recordTTL {
			out[ticker] = rec.volume
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Set replaces the underlying's volumes with the current snapshot's.
func (c *VolumeCache) Set(underlying string, volumes map[string]int64) {
	now := c.clock.Now()
	entry := &volumeEntry{
		volumes:   make(map[string]volumeRecord, len(volumes)),
		touchedAt: now,
	}
	for ticker, vol := range volumes {
		entry.volumes[ticker] = volumeRecord{volume: vol, observedAt: now}
	}

	c.mu.Lock()
	c.entries[underlying] = entry
	c.mu.Unlock()
}

// Stats reports cache occupancy.
type CacheStats struct {
	Underlyings int `json:"underlyings"`
	Contracts   int `json:"contracts"`
}

func (c *VolumeCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := CacheStats{Underlyings: len(c.entries)}
	for _, e := range c.entries {
		s.Contracts += len(e.volumes)
	}
	return s
}

// Stop terminates the janitor.
func (c *VolumeCache) Stop() {
	c.once.Do(func() { close(c.stopCh) })
}

func (c *VolumeCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evictIdle()
		}
	}
}

func (c *VolumeCache) evictIdle() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for underlying, entry := range c.entries {
		if now.Sub(entry.touchedAt) > idleEviction {
			delete(c.entries, underlying)
		}
	}
}
