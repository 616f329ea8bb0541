package domain

import (
	"math"
	"testing"
	"time"
)

func TestBarValidate(t *testing.T) {
	base := Bar{
		Symbol: "SPY", Timeframe: Timeframe60m,
		Start: time.Date(2025, 10, 22, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 10, 22, 14, 0, 0, 0, time.UTC),
		Open:  450, High: 455, Low: 449, Close: 454, Volume: 1_000_000,
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Bar)
	}{
		{"high below low", func(b *Bar) { b.High = 448 }},
		{"open above high", func(b *Bar) { b.Open = 456 }},
		{"close below low", func(b *Bar) { b.Close = 448.5 }},
		{"negative volume", func(b *Bar) { b.Volume = -1 }},
		{"nan close", func(b *Bar) { b.Close = math.NaN() }},
		{"inf high", func(b *Bar) { b.High = math.Inf(1) }},
		{"end before start", func(b *Bar) { b.End = b.Start }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base
			tt.mutate(&b)
			if err := b.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestKindFromTicker(t *testing.T) {
	tests := []struct {
		ticker string
		want   OptionKind
	}{
		{"O:AAPL261219C00200000", Call},
		{"O:AAPL261219P00200000", Put},
		{"O:SPY250117C00480000", Call},
		{"SPY250117P00480000", Put},
		{"", Put},
	}
	for _, tt := range tests {
		if got := KindFromTicker(tt.ticker); got != tt.want {
			t.Errorf("KindFromTicker(%q) = %s, want %s", tt.ticker, got, tt.want)
		}
	}
}

func TestIntensityFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  Intensity
	}{
		{0.0, IntensityNormal},
		{0.09, IntensityNormal},
		{0.10, IntensityModerate},
		{0.19, IntensityModerate},
		{0.20, IntensityStrong},
		{0.49, IntensityStrong},
		{0.50, IntensityAggressive},
		{2.0, IntensityAggressive},
	}
	for _, tt := range tests {
		if got := IntensityFor(tt.ratio); got != tt.want {
			t.Errorf("IntensityFor(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestContractValidate(t *testing.T) {
	c := ContractSnapshot{
		Ticker: "O:AAPL261219C00200000", Underlying: "AAPL", Kind: Call,
		Strike: 200, Expiration: "2026-12-19",
		DayVolume: 1500, OpenInterest: 3000,
		LastPrice: 7.00, Bid: 6.95, Ask: 7.01,
		UnderlyingPrice: 198.50,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("valid contract rejected: %v", err)
	}

	crossed := c
	crossed.Bid = 7.10
	if err := crossed.Validate(); err == nil {
		t.Error("crossed quote accepted")
	}

	badStrike := c
	badStrike.Strike = 0
	if err := badStrike.Validate(); err == nil {
		t.Error("zero strike accepted")
	}

	nanPrice := c
	nanPrice.LastPrice = math.NaN()
	if err := nanPrice.Validate(); err == nil {
		t.Error("NaN last price accepted")
	}
}

func TestContractDTE(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	c := ContractSnapshot{Expiration: "2025-10-27"}
	now := time.Date(2025, 10, 22, 15, 30, 0, 0, loc)

	dte, err := c.DTE(now, loc)
	if err != nil {
		t.Fatalf("DTE: %v", err)
	}
	if dte != 5 {
		t.Errorf("DTE = %d, want 5", dte)
	}

	expired := ContractSnapshot{Expiration: "2025-10-20"}
	dte, err = expired.DTE(now, loc)
	if err != nil {
		t.Fatalf("DTE: %v", err)
	}
	if dte != 0 {
		t.Errorf("expired DTE = %d, want 0 floor", dte)
	}
}

func TestSpreadPct(t *testing.T) {
	c := ContractSnapshot{Bid: 0.95, Ask: 1.05}
	got := c.SpreadPct()
	if math.Abs(got-10.0) > 1e-9 {
		t.Errorf("SpreadPct = %v, want 10", got)
	}
	if (ContractSnapshot{}).SpreadPct() != 0 {
		t.Error("missing quotes should yield zero spread")
	}
}

func TestPatternDedupKey(t *testing.T) {
	p := PatternRecord{Symbol: "AAPL", Pattern: Pattern322, Timeframe: Timeframe60m}
	got := p.DedupKey("2025-10-22")
	want := "AAPL|3-2-2|60m|2025-10-22"
	if got != want {
		t.Errorf("DedupKey = %q, want %q", got, want)
	}
}

func TestFlowCooldownKey(t *testing.T) {
	e := FlowEvent{Underlying: "TSLA", Kind: Put, Strike: 250, Expiration: "2025-11-21"}
	want := "TSLA|PUT|250.00|2025-11-21"
	if got := e.CooldownKey(); got != want {
		t.Errorf("CooldownKey = %q, want %q", got, want)
	}
}
