package domain

import (
	"fmt"
	"time"
)

// Timeframe identifies a canonical bar duration.
type Timeframe string

const (
	Timeframe60m  Timeframe = "60m"
	Timeframe240m Timeframe = "240m"
	Timeframe720m Timeframe = "720m"
	TimeframeDay  Timeframe = "1d"
)

// Duration returns the nominal length of the timeframe. Actual bars may be
// shorter or longer across DST transitions.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe60m:
		return 60 * time.Minute
	case Timeframe240m:
		return 240 * time.Minute
	case Timeframe720m:
		return 720 * time.Minute
	case TimeframeDay:
		return 24 * time.Hour
	}
	return 0
}

// Minutes returns the aggregation multiplier requested from the provider.
func (t Timeframe) Minutes() int {
	return int(t.Duration() / time.Minute)
}

// Bar is one OHLCV aggregate. Start/End are UTC instants; bars are
// half-open intervals [Start, End).
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Start     time.Time `json:"start_utc"`
	End       time.Time `json:"end_utc"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	VWAP      float64   `json:"vwap,omitempty"`
}

// Validate rejects bars that violate OHLCV ordering or carry
// non-finite values.
func (b Bar) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low},
		{"close", b.Close}, {"volume", b.Volume},
	} {
		if !IsFinite(v.val) {
			return &ValidationError{Field: v.name, Value: v.val, Reason: "not finite"}
		}
	}
	if b.Low < 0 {
		return &ValidationError{Field: "low", Value: b.Low, Reason: "negative"}
	}
	if b.High < b.Low {
		return &ValidationError{Field: "high", Value: b.High, Reason: fmt.Sprintf("below low %.4f", b.Low)}
	}
	if b.Open < b.Low || b.Open > b.High {
		return &ValidationError{Field: "open", Value: b.Open, Reason: "outside low..high"}
	}
	if b.Close < b.Low || b.Close > b.High {
		return &ValidationError{Field: "close", Value: b.Close, Reason: "outside low..high"}
	}
	if b.Volume < 0 {
		return &ValidationError{Field: "volume", Value: b.Volume, Reason: "negative"}
	}
	if !b.End.After(b.Start) {
		return &ValidationError{Field: "end_utc", Reason: "end not after start"}
	}
	return nil
}

// Range returns high minus low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body returns the absolute close-to-open distance.
func (b Bar) Body() float64 {
	d := b.Close - b.Open
	if d < 0 {
		return -d
	}
	return d
}

// Contains reports whether the instant t falls inside [Start, End).
func (b Bar) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}
