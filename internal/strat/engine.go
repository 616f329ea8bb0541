package strat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// Engine runs the pattern detectors over bars from the store and attaches
// confidence. One engine is shared by every STRAT worker; it holds no
// mutable state.
type Engine struct {
	store *BarStore
	clock timeutil.Clock
}

// NewEngine builds the engine.
func NewEngine(store *BarStore, clock timeutil.Clock) *Engine {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Engine{store: store, clock: clock}
}

// Scan322 detects the 3-2-2 reversal for symbol on the current ET date.
// Returns nil when the sequence is absent.
func (e *Engine) Scan322(ctx context.Context, symbol string) (*domain.PatternRecord, error) {
	bars, err := e.store.SixtyMinute(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rec, ok := Detect322(symbol, bars, e.clock.Now())
	if !ok {
		return nil, nil
	}
	return e.finish(rec, bars), nil
}

// Scan22 detects the 4-hour 2-2 reversal for symbol on the current ET date.
func (e *Engine) Scan22(ctx context.Context, symbol string) (*domain.PatternRecord, error) {
	bars, err := e.store.FourHour(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rec, ok := Detect22(symbol, bars, e.clock.Now())
	if !ok {
		return nil, nil
	}
	return e.finish(rec, bars), nil
}

// ScanMiyagi detects the 1-3-1 sequence on the trailing 12-hour bars.
func (e *Engine) ScanMiyagi(ctx context.Context, symbol string) (*domain.PatternRecord, error) {
	bars, err := e.store.TwelveHour(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rec, ok := DetectMiyagi(symbol, bars)
	if !ok {
		return nil, nil
	}
	return e.finish(rec, bars), nil
}

// finish truncates history at the completion bar, scores confidence, and
// validates the record. A record failing validation is discarded: levels
// with NaN in them must never reach a webhook.
func (e *Engine) finish(rec domain.PatternRecord, bars []domain.Bar) *domain.PatternRecord {
	history := barsThrough(bars, rec.CompletionBarStart)
	rec.Confidence = Confidence(history, rec.Direction, referenceBars(bars, rec))
	if err := rec.Validate(); err != nil {
		log.Warn().Str("component", "strat").Str("symbol", rec.Symbol).
			Str("pattern", string(rec.Pattern)).Err(err).Msg("Discarding invalid pattern record")
		return nil
	}
	return &rec
}

// barsThrough returns the prefix of bars ending at the bar that starts at
// completionStart, so confidence never reads the future.
func barsThrough(bars []domain.Bar, completionStart time.Time) []domain.Bar {
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Start.After(completionStart) {
			return bars[:i+1]
		}
	}
	return bars
}

// referenceBars picks the bars forming the pattern, for the clarity factor.
func referenceBars(bars []domain.Bar, rec domain.PatternRecord) []domain.Bar {
	count := 3
	if rec.Pattern == domain.Pattern22 {
		count = 2
	} else if rec.Pattern == domain.PatternMiyagi {
		count = 4
	}
	history := barsThrough(bars, rec.CompletionBarStart)
	if len(history) < count {
		return history
	}
	return history[len(history)-count:]
}
