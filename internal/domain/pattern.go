package domain

import (
	"fmt"
	"time"
)

// PatternName identifies a detected candlestick sequence.
type PatternName string

const (
	Pattern322    PatternName = "3-2-2"
	Pattern22     PatternName = "2-2"
	PatternMiyagi PatternName = "1-3-1"
)

// PatternRecord is the output of a pattern detector: the completed sequence
// plus the trade levels derived from it.
type PatternRecord struct {
	Symbol             string            `json:"symbol"`
	Pattern            PatternName       `json:"pattern_name"`
	Timeframe          Timeframe         `json:"timeframe"`
	CompletionBarStart time.Time         `json:"completion_bar_start_utc"`
	Direction          OptionKind        `json:"direction"`
	Entry              float64           `json:"entry"`
	Stop               float64           `json:"stop"`
	Target             float64           `json:"target"`
	Confidence         float64           `json:"confidence"`
	Meta               map[string]string `json:"meta,omitempty"`
}

// DedupKey builds the at-most-once-per-day alert key. The date component is
// the ET trading date of the scan that produced the record.
func (p PatternRecord) DedupKey(tradingDateET string) string {
	return fmt.Sprintf("%s|%s|%s|%s", p.Symbol, p.Pattern, p.Timeframe, tradingDateET)
}

// Validate rejects records with non-finite levels or confidence outside the
// clamped band.
func (p PatternRecord) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"entry", p.Entry}, {"stop", p.Stop}, {"target", p.Target},
	} {
		if !FinitePositive(v.val) {
			return &ValidationError{Field: v.name, Value: v.val, Reason: "not positive finite"}
		}
	}
	if !IsFinite(p.Confidence) || p.Confidence < 0.40 || p.Confidence > 0.95 {
		return &ValidationError{Field: "confidence", Value: p.Confidence, Reason: "outside 0.40..0.95"}
	}
	if p.Direction != Call && p.Direction != Put {
		return &ValidationError{Field: "direction", Reason: "must be CALL or PUT"}
	}
	return nil
}
