package strat

import (
	"context"
	"testing"
	"time"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

type fakeAggs struct {
	bars       []domain.Bar
	multiplier int
	timespan   string
	calls      int
}

func (f *fakeAggs) GetAggregates(ctx context.Context, symbol string, multiplier int, timespan string, from, to time.Time) ([]domain.Bar, error) {
	f.calls++
	f.multiplier = multiplier
	f.timespan = timespan
	return f.bars, nil
}

func TestBarStoreRequestsMinuteMultipliers(t *testing.T) {
	clock := timeutil.FixedClock{T: time.Date(2025, 10, 22, 15, 0, 0, 0, timeutil.ET())}

	cases := []struct {
		name       string
		fetch      func(s *BarStore) error
		multiplier int
	}{
		{"60m", func(s *BarStore) error { _, err := s.SixtyMinute(context.Background(), "SPY"); return err }, 60},
		{"4h", func(s *BarStore) error { _, err := s.FourHour(context.Background(), "SPY"); return err }, 240},
		{"12h", func(s *BarStore) error { _, err := s.TwelveHour(context.Background(), "SPY"); return err }, 720},
	}
	for _, tc := range cases {
		fake := &fakeAggs{}
		store := NewBarStore(fake, clock)
		if err := tc.fetch(store); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if fake.timespan != "minute" {
			t.Errorf("%s: timespan = %q, want minute", tc.name, fake.timespan)
		}
		if fake.multiplier != tc.multiplier {
			t.Errorf("%s: multiplier = %d, want %d", tc.name, fake.multiplier, tc.multiplier)
		}
	}
}

func TestBarStoreRejectsMisalignedResponse(t *testing.T) {
	clock := timeutil.FixedClock{T: time.Date(2025, 10, 22, 15, 0, 0, 0, timeutil.ET())}

	// Hour-anchored 240m bar, the legacy 4/hour shape.
	start := time.Date(2025, 10, 22, 9, 0, 0, 0, timeutil.ET())
	fake := &fakeAggs{bars: []domain.Bar{{
		Symbol: "SPY", Timeframe: domain.Timeframe240m,
		Start: start.UTC(), End: start.Add(4 * time.Hour).UTC(),
		Open: 1, High: 2, Low: 1, Close: 2, Volume: 1,
	}}}
	store := NewBarStore(fake, clock)

	if _, err := store.FourHour(context.Background(), "SPY"); err == nil {
		t.Error("misaligned 240m response accepted")
	}
}
