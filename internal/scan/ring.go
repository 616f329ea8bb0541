package scan

import (
	"sync"
	"time"

	httpapi "github.com/oraklabs/oraklscan/internal/interfaces/http"
)

// durationRing keeps the last N scan durations for the health endpoint.
type durationRing struct {
	mu   sync.Mutex
	buf  []time.Duration
	next int
	full bool
}

func newDurationRing(n int) *durationRing {
	return &durationRing{buf: make([]time.Duration, n)}
}

func (r *durationRing) add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *durationRing) last() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.next - 1
	if idx < 0 {
		if !r.full {
			return 0
		}
		idx = len(r.buf) - 1
	}
	return r.buf[idx]
}

func (r *durationRing) avg() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += r.buf[i]
	}
	return sum / time.Duration(n)
}

// skipRing keeps the last N structured skip records for diagnostics.
type skipRing struct {
	mu   sync.Mutex
	buf  []httpapi.SkipRecord
	next int
	full bool
}

func newSkipRing(n int) *skipRing {
	return &skipRing{buf: make([]httpapi.SkipRecord, n)}
}

func (r *skipRing) add(rec httpapi.SkipRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns records oldest first.
func (r *skipRing) snapshot() []httpapi.SkipRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]httpapi.SkipRecord, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]httpapi.SkipRecord, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
