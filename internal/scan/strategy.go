package scan

import (
	"context"
	"time"

	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// Skip is one structured drop: the symbol survived fetching but a filter or
// sanitizer rejected the candidate.
type Skip struct {
	Symbol string
	Reason string
}

// SymbolResult is one symbol's scan outcome.
type SymbolResult struct {
	Signals int
	Alerts  int
	Skips   []Skip
}

// Strategy is one scanning behavior: flow diffing, pattern detection, or
// block watching. Implementations own their filter cascade, dedup store,
// and webhook sink; the worker owns scheduling, fan-out, and health.
type Strategy interface {
	Name() string
	ScanSymbol(ctx context.Context, symbol string) (SymbolResult, error)
}

// Schedule decides the gap between scan cycles. STRAT strategies tighten
// near their alert windows; flow strategies run a fixed interval inside
// market hours.
type Schedule struct {
	// Interval is the base gap between cycles.
	Interval time.Duration
	// Windows, when set, enables adaptive tightening: 60s inside any
	// window, 120s within five minutes before one.
	Windows []timeutil.Window
	// Active, when set, gates scanning entirely: outside it the worker
	// sleeps min(Interval, 5m) without scanning.
	Active *timeutil.Window
}

const (
	windowInterval    = 60 * time.Second
	preWindowInterval = 120 * time.Second
	idleSleepCap      = 5 * time.Minute
)

// next returns the gap to the following cycle at time now.
func (s Schedule) next(now time.Time) time.Duration {
	for _, w := range s.Windows {
		if w.Contains(now) {
			return windowInterval
		}
		if until := w.MinutesUntil(now); until >= 0 && until <= 5 {
			return preWindowInterval
		}
	}
	return s.Interval
}

// active reports whether the worker should scan at all right now.
func (s Schedule) active(now time.Time) bool {
	return s.Active == nil || s.Active.Contains(now)
}

// idleSleep is the nap length while outside the active window.
func (s Schedule) idleSleep() time.Duration {
	if s.Interval < idleSleepCap {
		return s.Interval
	}
	return idleSleepCap
}

// cycleDeadline scales the per-cycle timeout with the fan-out:
// ceil(symbols/concurrency)*30s + 60s, floored at five minutes.
func cycleDeadline(symbols, concurrency int) time.Duration {
	if concurrency <= 0 {
		concurrency = 1
	}
	waves := (symbols + concurrency - 1) / concurrency
	d := time.Duration(waves)*30*time.Second + 60*time.Second
	if d < 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
