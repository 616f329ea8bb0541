package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces every outbound provider request through one shared token
// bucket. All scanner workers draw from the same bucket so the aggregate
// request rate stays inside the provider plan regardless of how many
// strategies are running. Per-endpoint accounting is kept for diagnostics.
type Limiter struct {
	bucket *rate.Limiter

	mu        sync.RWMutex
	endpoints map[string]*endpointCounters
}

type endpointCounters struct {
	requests  int64
	throttled int64
	totalWait time.Duration
	lastWait  time.Duration
}

// New creates a limiter allowing rps requests per second with the given
// burst capacity.
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &Limiter{
		bucket:    rate.NewLimiter(rate.Limit(rps), burst),
		endpoints: make(map[string]*endpointCounters),
	}
}

func (l *Limiter) counters(endpoint string) *endpointCounters {
	l.mu.RLock()
	c, ok := l.endpoints[endpoint]
	l.mu.RUnlock()
	if ok {
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if c, ok := l.endpoints[endpoint]; ok {
		return c
	}
	c = &endpointCounters{}
	l.endpoints[endpoint] = c
	return c
}

// Wait blocks until a token is available or the context is cancelled. The
// endpoint name is only used for accounting.
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	c := l.counters(endpoint)
	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}
	waited := time.Since(start)

	l.mu.Lock()
	c.requests++
	c.lastWait = waited
	c.totalWait += waited
	if waited > time.Millisecond {
		c.throttled++
	}
	l.mu.Unlock()
	return nil
}

// Allow reports whether a token is immediately available, consuming it if so.
func (l *Limiter) Allow(endpoint string) bool {
	ok := l.bucket.Allow()
	c := l.counters(endpoint)
	l.mu.Lock()
	if ok {
		c.requests++
	} else {
		c.throttled++
	}
	l.mu.Unlock()
	return ok
}

// SetRPS updates the shared rate at runtime.
func (l *Limiter) SetRPS(rps float64) {
	l.bucket.SetLimit(rate.Limit(rps))
}

// Tokens returns the number of tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.bucket.Tokens()
}

// EndpointStats is a snapshot of one endpoint's pacing history.
type EndpointStats struct {
	Endpoint  string        `json:"endpoint"`
	Requests  int64         `json:"requests"`
	Throttled int64         `json:"throttled"`
	TotalWait time.Duration `json:"total_wait"`
	LastWait  time.Duration `json:"last_wait"`
}

// Stats returns per-endpoint accounting snapshots.
func (l *Limiter) Stats() map[string]EndpointStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]EndpointStats, len(l.endpoints))
	for name, c := range l.endpoints {
		stats[name] = EndpointStats{
			Endpoint:  name,
			Requests:  c.requests,
			Throttled: c.throttled,
			TotalWait: c.totalWait,
			LastWait:  c.lastWait,
		}
	}
	return stats
}
