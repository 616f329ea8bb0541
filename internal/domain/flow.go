package domain

import (
	"strconv"
	"time"
)

// ExecutionSide classifies where a flow printed relative to the quote.
type ExecutionSide string

const (
	SideAsk     ExecutionSide = "ASK"
	SideBid     ExecutionSide = "BID"
	SideMid     ExecutionSide = "MID"
	SideUnknown ExecutionSide = "UNKNOWN"
)

// Intensity buckets the volume-delta to open-interest ratio.
type Intensity string

const (
	IntensityNormal     Intensity = "NORMAL"
	IntensityModerate   Intensity = "MODERATE"
	IntensityStrong     Intensity = "STRONG"
	IntensityAggressive Intensity = "AGGRESSIVE"
)

// IntensityFor buckets a vol/OI ratio.
func IntensityFor(volOIRatio float64) Intensity {
	switch {
	case volOIRatio >= 0.50:
		return IntensityAggressive
	case volOIRatio >= 0.20:
		return IntensityStrong
	case volOIRatio >= 0.10:
		return IntensityModerate
	default:
		return IntensityNormal
	}
}

// FlowEvent is one detected burst of contract activity between two chain
// snapshots. Events are produced fresh every scan and never persisted
// individually.
type FlowEvent struct {
	ContractTicker  string        `json:"contract_ticker"`
	Underlying      string        `json:"underlying"`
	Kind            OptionKind    `json:"kind"`
	Strike          float64       `json:"strike"`
	Expiration      string        `json:"expiration_date"`
	VolumeDelta     int64         `json:"volume_delta"`
	TotalVolume     int64         `json:"total_volume"`
	OpenInterest    int64         `json:"open_interest"`
	VolOIRatio      float64       `json:"vol_oi_ratio"`
	LastPrice       float64       `json:"last_price"`
	Bid             float64       `json:"bid"`
	Ask             float64       `json:"ask"`
	BidSize         int64         `json:"bid_size"`
	AskSize         int64         `json:"ask_size"`
	PremiumUSD      float64       `json:"premium_usd"`
	IV              float64       `json:"iv"`
	Delta           float64       `json:"delta"`
	Gamma           float64       `json:"gamma"`
	Theta           float64       `json:"theta"`
	Vega            float64       `json:"vega"`
	UnderlyingPrice float64       `json:"underlying_price"`
	ExecutionSide   ExecutionSide `json:"execution_side"`
	Intensity       Intensity     `json:"intensity"`
	ObservedAt      time.Time     `json:"observed_at"`
}

// CooldownKey identifies a contract for flow-alert cooldown purposes.
func (e FlowEvent) CooldownKey() string {
	return e.Underlying + "|" + string(e.Kind) + "|" + formatStrike(e.Strike) + "|" + e.Expiration
}

func formatStrike(s float64) string {
	// two decimals keeps every listed strike distinct
	return strconv.FormatFloat(s, 'f', 2, 64)
}
