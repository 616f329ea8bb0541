package scan

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/alerts"
	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/persistence"
	"github.com/oraklabs/oraklscan/internal/providers/polygon"
	"github.com/oraklabs/oraklscan/internal/strat"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// PatternKind selects which detector a STRAT strategy runs.
type PatternKind string

const (
	Kind322    PatternKind = "322"
	Kind22     PatternKind = "22"
	KindMiyagi PatternKind = "miyagi"
)

// StratStrategy runs one pattern detector over the watchlist and posts
// completed sequences inside the pattern's alert window. Detection runs on
// every cycle so bars and classifications persist even outside the window;
// alerting is gated to the window.
type StratStrategy struct {
	name    string
	kind    PatternKind
	engine  *strat.Engine
	store   *strat.BarStore
	dedup   *alerts.DedupStore
	repos   *persistence.Repository
	sink    *alerts.Sink
	webhook string
	clock   timeutil.Clock
}

// NewStratStrategy wires one pattern bot. repos may be nil.
func NewStratStrategy(name string, kind PatternKind, engine *strat.Engine, store *strat.BarStore,
	dedup *alerts.DedupStore, repos *persistence.Repository, sink *alerts.Sink, webhookURL string,
	clock timeutil.Clock) *StratStrategy {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &StratStrategy{
		name:    name,
		kind:    kind,
		engine:  engine,
		store:   store,
		dedup:   dedup,
		repos:   repos,
		sink:    sink,
		webhook: webhookURL,
		clock:   clock,
	}
}

func (s *StratStrategy) Name() string { return s.name }

// Windows returns the ET alert windows for the strategy's pattern.
func (s *StratStrategy) Windows() []timeutil.Window {
	switch s.kind {
	case Kind22:
		return []timeutil.Window{strat.Window22HeadsUp, strat.Window22Signal}
	case KindMiyagi:
		return []timeutil.Window{strat.WindowMiyagiAM, strat.WindowMiyagiPM}
	default:
		return []timeutil.Window{strat.Window322}
	}
}

func (s *StratStrategy) ScanSymbol(ctx context.Context, symbol string) (SymbolResult, error) {
	var res SymbolResult

	rec, err := s.scan(ctx, symbol)
	if err != nil {
		if errors.Is(err, polygon.ErrNotFound) {
			res.Skips = append(res.Skips, Skip{Symbol: symbol, Reason: "symbol not found (skip list)"})
			return res, nil
		}
		return res, err
	}

	s.persistBars(ctx, symbol)

	if rec == nil {
		return res, nil
	}
	res.Signals++

	now := s.clock.Now()
	if !s.inWindow(now) {
		res.Skips = append(res.Skips, Skip{Symbol: symbol, Reason: "outside alert window"})
		return res, nil
	}

	key := rec.DedupKey(timeutil.TradingDate(now))
	if !s.dedup.AllowPattern(ctx, key) {
		return res, nil
	}

	if !s.recordAlert(ctx, *rec, key) {
		// durable tier says this alert already went out before a restart
		return res, nil
	}

	if err := s.sink.Send(ctx, s.webhook, alerts.PatternEmbed(*rec)); err == nil {
		res.Alerts++
	}
	return res, nil
}

func (s *StratStrategy) scan(ctx context.Context, symbol string) (*domain.PatternRecord, error) {
	switch s.kind {
	case Kind22:
		return s.engine.Scan22(ctx, symbol)
	case KindMiyagi:
		return s.engine.ScanMiyagi(ctx, symbol)
	default:
		return s.engine.Scan322(ctx, symbol)
	}
}

func (s *StratStrategy) inWindow(now time.Time) bool {
	for _, w := range s.Windows() {
		if w.Contains(now) {
			return true
		}
	}
	return false
}

// persistBars saves the timeframe's bars and the latest classification. The
// bars come back from the provider's short-lived cache, so this costs no
// extra API call after the detector's fetch. Storage failures are logged and
// do not affect the scan.
func (s *StratStrategy) persistBars(ctx context.Context, symbol string) {
	if s.repos == nil || s.repos.Bars == nil {
		return
	}
	bars, err := s.fetchBars(ctx, symbol)
	if err != nil || len(bars) == 0 {
		return
	}
	if err := s.repos.Bars.SaveBars(ctx, bars); err != nil {
		log.Warn().Str("component", s.name).Str("symbol", symbol).Err(err).Msg("Failed to persist bars")
		return
	}
	last := bars[len(bars)-1]
	prev, ok := strat.PreviousBar(bars, last)
	if !ok {
		return
	}
	barType := strat.Classify(last, prev)
	if err := s.repos.Bars.SaveClassification(ctx, last, string(barType), &prev); err != nil {
		log.Warn().Str("component", s.name).Str("symbol", symbol).Err(err).Msg("Failed to persist classification")
	}
}

func (s *StratStrategy) fetchBars(ctx context.Context, symbol string) ([]domain.Bar, error) {
	switch s.kind {
	case Kind22:
		return s.store.FourHour(ctx, symbol)
	case KindMiyagi:
		return s.store.TwelveHour(ctx, symbol)
	default:
		return s.store.SixtyMinute(ctx, symbol)
	}
}

// recordAlert writes the detection and its alert row. The alert insert is the
// durable dedup check: a unique-key conflict means the alert was posted in an
// earlier process and must not repeat. Without a database the in-memory and
// Redis tiers already said yes, so the alert proceeds.
func (s *StratStrategy) recordAlert(ctx context.Context, rec domain.PatternRecord, dedupKey string) bool {
	if s.repos == nil || s.repos.Patterns == nil {
		return true
	}
	patternID, err := s.repos.Patterns.SavePattern(ctx, rec)
	if err != nil {
		log.Error().Str("component", s.name).Str("symbol", rec.Symbol).Err(err).Msg("Failed to persist pattern")
		// still attempt the alert row so dedup stays durable
	}
	payload, _ := json.Marshal(rec)
	fresh, err := s.repos.Patterns.InsertAlert(ctx, persistence.Alert{
		PatternID:   patternID,
		Symbol:      rec.Symbol,
		PatternType: string(rec.Pattern),
		Timeframe:   string(rec.Timeframe),
		AlertTS:     s.clock.Now().UTC(),
		PayloadJSON: payload,
		DedupKey:    dedupKey,
	})
	if err != nil {
		log.Error().Str("component", s.name).Str("symbol", rec.Symbol).Err(err).Msg("Failed to persist alert")
		return true
	}
	return fresh
}
