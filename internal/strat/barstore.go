package strat

import (
	"context"
	"fmt"
	"time"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// AggregatesFetcher is the provider slice the bar store needs.
type AggregatesFetcher interface {
	GetAggregates(ctx context.Context, symbol string, multiplier int, timespan string, from, to time.Time) ([]domain.Bar, error)
}

// BarStore fetches the bar series each pattern detector works on. Every
// request uses minute-based multipliers (60, 240, 720); asking the provider
// for `4/hour` style buckets produces differently anchored bars and is
// never done here. Responses are alignment-checked before they reach
// pattern detection.
type BarStore struct {
	fetcher AggregatesFetcher
	clock   timeutil.Clock
}

// NewBarStore wires the store over the shared fetcher.
func NewBarStore(fetcher AggregatesFetcher, clock timeutil.Clock) *BarStore {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &BarStore{fetcher: fetcher, clock: clock}
}

// SixtyMinute returns 60-minute bars covering the current ET session plus
// enough of the prior days to give the 08:00 bar a predecessor across
// weekends and holidays.
func (s *BarStore) SixtyMinute(ctx context.Context, symbol string) ([]domain.Bar, error) {
	now := s.clock.Now()
	from := timeutil.MidnightET(now).AddDate(0, 0, -4)
	return s.fetch(ctx, symbol, 60, domain.Timeframe60m, from, now)
}

// FourHour returns 240-minute bars with predecessor context for the 04:00
// ET bar.
func (s *BarStore) FourHour(ctx context.Context, symbol string) ([]domain.Bar, error) {
	now := s.clock.Now()
	from := timeutil.MidnightET(now).AddDate(0, 0, -7)
	return s.fetch(ctx, symbol, 240, domain.Timeframe240m, from, now)
}

// TwelveHour returns 720-minute session bars. The Miyagi detector needs a
// rolling window of four bars plus a predecessor, so the range spans about
// two trading weeks to survive weekends.
func (s *BarStore) TwelveHour(ctx context.Context, symbol string) ([]domain.Bar, error) {
	now := s.clock.Now()
	from := timeutil.MidnightET(now).AddDate(0, 0, -12)
	return s.fetch(ctx, symbol, 720, domain.Timeframe720m, from, now)
}

func (s *BarStore) fetch(ctx context.Context, symbol string, multiplier int, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	bars, err := s.fetcher.GetAggregates(ctx, symbol, multiplier, "minute", from, to)
	if err != nil {
		return nil, err
	}
	if err := CheckAlignment(bars, tf); err != nil {
		return nil, fmt.Errorf("%s %s aggregates misaligned: %w", symbol, tf, err)
	}
	return bars, nil
}
