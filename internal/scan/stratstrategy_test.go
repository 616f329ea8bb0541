package scan

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oraklabs/oraklscan/internal/alerts"
	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/persistence"
	"github.com/oraklabs/oraklscan/internal/strat"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

type captureDoer struct {
	mu     sync.Mutex
	bodies []string
}

func (d *captureDoer) Do(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	d.mu.Lock()
	d.bodies = append(d.bodies, string(body))
	d.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusNoContent,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func (d *captureDoer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bodies)
}

type fakeBars struct {
	symbol string
	bars   []domain.Bar
}

func (f *fakeBars) GetAggregates(_ context.Context, symbol string, _ int, _ string, _, _ time.Time) ([]domain.Bar, error) {
	if symbol != f.symbol {
		return nil, nil
	}
	return f.bars, nil
}

type fakePatternsRepo struct {
	fresh    bool
	patterns []domain.PatternRecord
	alerts   []persistence.Alert
}

func (r *fakePatternsRepo) SavePattern(_ context.Context, rec domain.PatternRecord) (int64, error) {
	r.patterns = append(r.patterns, rec)
	return int64(len(r.patterns)), nil
}

func (r *fakePatternsRepo) InsertAlert(_ context.Context, a persistence.Alert) (bool, error) {
	r.alerts = append(r.alerts, a)
	return r.fresh, nil
}

func (r *fakePatternsRepo) MarkAlert(_ context.Context, _ string) (bool, error) {
	return r.fresh, nil
}

type fakeBarsRepo struct {
	saved      int
	classified []string
}

func (r *fakeBarsRepo) SaveBars(_ context.Context, bars []domain.Bar) error {
	r.saved += len(bars)
	return nil
}

func (r *fakeBarsRepo) SaveClassification(_ context.Context, _ domain.Bar, barType string, _ *domain.Bar) error {
	r.classified = append(r.classified, barType)
	return nil
}

func hourBar(hour int, o, h, l, c float64) domain.Bar {
	start := time.Date(2025, 10, 22, hour, 0, 0, 0, timeutil.ET())
	return domain.Bar{
		Symbol:    "SPY",
		Timeframe: domain.Timeframe60m,
		Start:     start.UTC(),
		End:       start.Add(time.Hour).UTC(),
		Open:      o, High: h, Low: l, Close: c,
		Volume: 10_000,
	}
}

// Outside bar 08:00, 2D 09:00, 2U 10:00: the 3-2-2 CALL from the detector
// tests, fed through the full strategy pipeline.
func reversalBars() []domain.Bar {
	return []domain.Bar{
		hourBar(7, 450, 455, 449, 454),
		hourBar(8, 454, 456, 448, 448),
		hourBar(9, 448, 450, 447, 449),
		hourBar(10, 449, 452, 449, 452),
	}
}

func newStratFixture(clock timeutil.Clock, repos *persistence.Repository) (*StratStrategy, *captureDoer) {
	store := strat.NewBarStore(&fakeBars{symbol: "SPY", bars: reversalBars()}, clock)
	engine := strat.NewEngine(store, clock)
	dedup := alerts.NewDedupStore(4*time.Hour, clock, nil, nil)
	doer := &captureDoer{}
	sink := alerts.NewSink(doer, "Strat322")
	s := NewStratStrategy("strat322", Kind322, engine, store, dedup, repos, sink,
		"https://discord.test/hook", clock)
	return s, doer
}

func TestStratStrategyPostsInsideWindow(t *testing.T) {
	clock := timeutil.FixedClock{T: time.Date(2025, 10, 22, 10, 3, 0, 0, timeutil.ET())}
	patterns := &fakePatternsRepo{fresh: true}
	bars := &fakeBarsRepo{}
	s, doer := newStratFixture(clock, &persistence.Repository{Patterns: patterns, Bars: bars})

	res, err := s.ScanSymbol(context.Background(), "SPY")
	require.NoError(t, err)
	require.Equal(t, 1, res.Signals)
	require.Equal(t, 1, res.Alerts)
	require.Equal(t, 1, doer.count())
	require.Contains(t, doer.bodies[0], "ORAKL Strat322")

	require.Len(t, patterns.patterns, 1)
	require.Len(t, patterns.alerts, 1)
	require.Equal(t, "SPY|3-2-2|60m|2025-10-22", patterns.alerts[0].DedupKey)
	require.EqualValues(t, 1, patterns.alerts[0].PatternID)

	require.Equal(t, 4, bars.saved)
	require.Equal(t, []string{"2U"}, bars.classified)
}

func TestStratStrategyHoldsOutsideWindow(t *testing.T) {
	clock := timeutil.FixedClock{T: time.Date(2025, 10, 22, 11, 0, 0, 0, timeutil.ET())}
	s, doer := newStratFixture(clock, nil)

	res, err := s.ScanSymbol(context.Background(), "SPY")
	require.NoError(t, err)
	require.Equal(t, 1, res.Signals, "detection still runs outside the window")
	require.Zero(t, res.Alerts)
	require.Zero(t, doer.count())
	require.Len(t, res.Skips, 1)
	require.Equal(t, "outside alert window", res.Skips[0].Reason)
}

func TestStratStrategyAlertsOncePerDay(t *testing.T) {
	clock := timeutil.FixedClock{T: time.Date(2025, 10, 22, 10, 3, 0, 0, timeutil.ET())}
	s, doer := newStratFixture(clock, nil)
	ctx := context.Background()

	first, err := s.ScanSymbol(ctx, "SPY")
	require.NoError(t, err)
	require.Equal(t, 1, first.Alerts)

	second, err := s.ScanSymbol(ctx, "SPY")
	require.NoError(t, err)
	require.Zero(t, second.Alerts, "same pattern same day suppressed")
	require.Equal(t, 1, doer.count())
}

func TestStratStrategyDurableTierSuppresses(t *testing.T) {
	clock := timeutil.FixedClock{T: time.Date(2025, 10, 22, 10, 3, 0, 0, timeutil.ET())}
	patterns := &fakePatternsRepo{fresh: false}
	s, doer := newStratFixture(clock, &persistence.Repository{Patterns: patterns})

	res, err := s.ScanSymbol(context.Background(), "SPY")
	require.NoError(t, err)
	require.Equal(t, 1, res.Signals)
	require.Zero(t, res.Alerts, "alert row existed before the restart")
	require.Zero(t, doer.count())
}
