package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// ErrBudgetExhausted is the sentinel matched with errors.Is when the daily
// request allowance is used up.
var ErrBudgetExhausted = errors.New("daily request budget exhausted")

// ExhaustedError carries the usage detail behind ErrBudgetExhausted.
type ExhaustedError struct {
	Used    int64
	Limit   int64
	ResetAt time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted: %d/%d requests used, resets at %s ET",
		e.Used, e.Limit, e.ResetAt.In(timeutil.ET()).Format("15:04"))
}

func (e *ExhaustedError) Unwrap() error { return ErrBudgetExhausted }

// Tracker counts provider requests against a daily allowance that resets at
// 00:00 ET, the same boundary the alert dedup store uses. A zero limit
// disables tracking.
type Tracker struct {
	limit int64
	clock timeutil.Clock

	mu        sync.Mutex
	used      int64
	resetDate string // ET trading date the counter belongs to
}

// New creates a tracker. clock may be nil for wall time.
func New(limit int64, clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Tracker{
		limit:     limit,
		clock:     clock,
		resetDate: timeutil.TradingDate(clock.Now()),
	}
}

// rollover clears the counter when the ET date has changed since the last
// consume. Compared by date string so a missed midnight tick is harmless.
func (t *Tracker) rollover(now time.Time) {
	today := timeutil.TradingDate(now)
	if today != t.resetDate {
		t.used = 0
		t.resetDate = today
	}
}

// Consume records one request. Returns an ExhaustedError (wrapping
// ErrBudgetExhausted) when the allowance is already spent.
func (t *Tracker) Consume() error {
	if t.limit <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rollover(now)

	if t.used >= t.limit {
		return &ExhaustedError{
			Used:    t.used,
			Limit:   t.limit,
			ResetAt: timeutil.NextMidnightET(now),
		}
	}
	t.used++
	return nil
}

// Stats is a point-in-time view of the tracker.
type Stats struct {
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	ResetDate string    `json:"reset_date"`
	NextReset time.Time `json:"next_reset"`
	Unlimited bool      `json:"unlimited"`
}

// Stats returns current usage.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rollover(now)

	s := Stats{
		Limit:     t.limit,
		Used:      t.used,
		ResetDate: t.resetDate,
		NextReset: timeutil.NextMidnightET(now),
		Unlimited: t.limit <= 0,
	}
	if t.limit > 0 {
		s.Remaining = t.limit - t.used
	}
	return s
}
