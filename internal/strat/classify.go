package strat

import "github.com/oraklabs/oraklscan/internal/domain"

// BarType is the classification of a bar against its predecessor.
type BarType string

const (
	TypeInside  BarType = "1"
	TypeTwoUp   BarType = "2U"
	TypeTwoDown BarType = "2D"
	TypeOutside BarType = "3"
)

// Classify types bar b relative to predecessor p. Comparisons are inclusive,
// so equal highs and equal lows classify deterministically: a bar matching
// its predecessor exactly is an inside bar.
func Classify(b, p domain.Bar) BarType {
	brokeHigh := b.High > p.High
	brokeLow := b.Low < p.Low

	switch {
	case brokeHigh && brokeLow:
		return TypeOutside
	case !brokeHigh && !brokeLow:
		return TypeInside
	case brokeHigh:
		return TypeTwoUp
	default:
		return TypeTwoDown
	}
}

// IsDirectional reports whether the type is a 2U or 2D.
func (t BarType) IsDirectional() bool {
	return t == TypeTwoUp || t == TypeTwoDown
}

// OppositeOf reports whether t and o are the two opposing directional types.
func (t BarType) OppositeOf(o BarType) bool {
	return (t == TypeTwoUp && o == TypeTwoDown) || (t == TypeTwoDown && o == TypeTwoUp)
}

// Direction maps a directional bar type to the option kind a signal in that
// direction trades.
func (t BarType) Direction() domain.OptionKind {
	if t == TypeTwoUp {
		return domain.Call
	}
	return domain.Put
}
