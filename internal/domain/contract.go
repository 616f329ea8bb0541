package domain

import (
	"strings"
	"time"
)

// OptionKind is the contract right. Pattern directions reuse the same
// values: a bullish signal maps to CALL, bearish to PUT.
type OptionKind string

const (
	Call OptionKind = "CALL"
	Put  OptionKind = "PUT"
)

// ContractSnapshot is one option contract as seen in a chain snapshot.
type ContractSnapshot struct {
	Ticker          string     `json:"ticker"`
	Underlying      string     `json:"underlying"`
	Kind            OptionKind `json:"kind"`
	Strike          float64    `json:"strike"`
	Expiration      string     `json:"expiration_date"` // YYYY-MM-DD
	DayVolume       int64      `json:"day_volume"`
	DayClose        float64    `json:"day_close,omitempty"`
	DayOpen         float64    `json:"day_open,omitempty"`
	DayHigh         float64    `json:"day_high,omitempty"`
	DayLow          float64    `json:"day_low,omitempty"`
	OpenInterest    int64      `json:"open_interest"`
	LastPrice       float64    `json:"last_price"`
	Bid             float64    `json:"bid"`
	Ask             float64    `json:"ask"`
	BidSize         int64      `json:"bid_size"`
	AskSize         int64      `json:"ask_size"`
	IV              float64    `json:"iv"`
	Delta           float64    `json:"delta"`
	Gamma           float64    `json:"gamma"`
	Theta           float64    `json:"theta"`
	Vega            float64    `json:"vega"`
	UnderlyingPrice float64    `json:"underlying_price"`
	AsOf            time.Time  `json:"as_of"`
}

// ExpirationDate parses the contract expiration in the given location.
func (c ContractSnapshot) ExpirationDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", c.Expiration, loc)
}

// DTE returns whole days from now to expiration, floored at zero on
// expiration day.
func (c ContractSnapshot) DTE(now time.Time, loc *time.Location) (int, error) {
	exp, err := c.ExpirationDate(loc)
	if err != nil {
		return 0, err
	}
	nowLocal := now.In(loc)
	midnight := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, loc)
	days := int(exp.Sub(midnight).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, nil
}

// Validate applies the contract-level invariants. Failing contracts are
// skipped individually; the chain scan continues.
func (c ContractSnapshot) Validate() error {
	if c.Ticker == "" {
		return &ValidationError{Field: "ticker", Reason: "empty"}
	}
	if !IsFinite(c.Strike) || c.Strike <= 0 {
		return &ValidationError{Field: "strike", Value: c.Strike, Reason: "must be positive"}
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"last_price", c.LastPrice}, {"bid", c.Bid}, {"ask", c.Ask},
		{"underlying_price", c.UnderlyingPrice},
	} {
		if !IsFinite(v.val) || v.val < 0 {
			return &ValidationError{Field: v.name, Value: v.val, Reason: "negative or not finite"}
		}
	}
	if c.Bid > 0 && c.Ask > 0 && c.Bid > c.Ask {
		return &ValidationError{Field: "bid", Value: c.Bid, Reason: "crossed above ask"}
	}
	if c.DayVolume < 0 {
		return &ValidationError{Field: "day_volume", Value: float64(c.DayVolume), Reason: "negative"}
	}
	if c.OpenInterest < 0 {
		return &ValidationError{Field: "open_interest", Value: float64(c.OpenInterest), Reason: "negative"}
	}
	return nil
}

// Midpoint returns the quote midpoint, or zero when either side is missing.
func (c ContractSnapshot) Midpoint() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2
	}
	return 0
}

// SpreadPct returns the bid/ask spread as a percentage of the midpoint.
func (c ContractSnapshot) SpreadPct() float64 {
	mid := c.Midpoint()
	if mid <= 0 {
		return 0
	}
	return (c.Ask - c.Bid) / mid * 100
}

// KindFromTicker infers CALL/PUT from an OCC-style option ticker such as
// O:AAPL261219C00200000. Anything without a recognizable call marker is PUT.
func KindFromTicker(ticker string) OptionKind {
	// strip prefix and scan the expiry+right section: the right is the
	// single letter before the 8-digit strike
	s := strings.TrimPrefix(strings.ToUpper(ticker), "O:")
	if len(s) > 9 {
		switch s[len(s)-9] {
		case 'C':
			return Call
		case 'P':
			return Put
		}
	}
	if strings.Contains(s, "C0") && !strings.Contains(s, "P0") {
		return Call
	}
	return Put
}
