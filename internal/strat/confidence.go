package strat

import (
	"math"
	"sort"

	"github.com/oraklabs/oraklscan/internal/domain"
)

// Confidence weights and bands. The four factors sum to at most 100 points;
// the result is scaled to [0, 1] and clamped to the reporting band so a
// thin-history detection never claims certainty in either direction.
const (
	volumeWeight     = 30.0
	trendWeight      = 30.0
	clarityWeight    = 25.0
	volatilityWeight = 15.0

	trendMisalignCredit = 0.33
	wickPenalty         = 5.0

	confidenceFloor = 0.40
	confidenceCeil  = 0.95
)

// Confidence scores a detection from its inputs only: the bar history up to
// and including the completion bar, the signal direction, and the bars that
// form the pattern. No global state.
func Confidence(history []domain.Bar, direction domain.OptionKind, refBars []domain.Bar) float64 {
	if len(history) == 0 {
		return confidenceFloor
	}
	current := history[len(history)-1]

	score := volumeFactor(history, current) +
		trendFactor(history, direction, current) +
		clarityFactor(refBars) +
		volatilityFactor(history, current)

	c := score / 100
	if c < confidenceFloor {
		return confidenceFloor
	}
	if c > confidenceCeil {
		return confidenceCeil
	}
	return c
}

// volumeFactor compares the completion bar's volume to the median of the
// last 20 bars, capped at full credit.
func volumeFactor(history []domain.Bar, current domain.Bar) float64 {
	med := medianVolume(history, 20)
	if med <= 0 {
		return volumeWeight / 2
	}
	ratio := current.Volume / med
	if ratio > 1 {
		ratio = 1
	}
	return volumeWeight * ratio
}

// trendFactor grants full credit when the signal direction agrees with the
// close relative to the 20-bar EMA, partial credit otherwise.
func trendFactor(history []domain.Bar, direction domain.OptionKind, current domain.Bar) float64 {
	ema := ema20(history)
	above := current.Close > ema
	aligned := (direction == domain.Call && above) || (direction == domain.Put && !above)
	if aligned {
		return trendWeight
	}
	return trendWeight * trendMisalignCredit
}

// clarityFactor penalizes wicky reference bars: each pattern bar whose body
// covers less than half its range costs a fixed deduction.
func clarityFactor(refBars []domain.Bar) float64 {
	score := clarityWeight
	for _, b := range refBars {
		r := b.Range()
		if r <= 0 {
			continue
		}
		if b.Body()/r < 0.5 {
			score -= wickPenalty
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// volatilityFactor rewards a normal regime: full credit when 14-bar ATR as
// a percentage of price lands in [1%, 3%], half credit in the adjacent
// bands, none in dead or violent tape.
func volatilityFactor(history []domain.Bar, current domain.Bar) float64 {
	if current.Close <= 0 {
		return 0
	}
	atr := atr14(history)
	pct := atr / current.Close * 100
	switch {
	case pct >= 1 && pct <= 3:
		return volatilityWeight
	case (pct >= 0.5 && pct < 1) || (pct > 3 && pct <= 5):
		return volatilityWeight / 2
	default:
		return 0
	}
}

func medianVolume(history []domain.Bar, n int) float64 {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	vols := make([]float64, 0, n)
	for _, b := range history[start:] {
		vols = append(vols, b.Volume)
	}
	if len(vols) == 0 {
		return 0
	}
	sort.Float64s(vols)
	mid := len(vols) / 2
	if len(vols)%2 == 1 {
		return vols[mid]
	}
	return (vols[mid-1] + vols[mid]) / 2
}

// ema20 seeds with the first close and folds forward with k = 2/(n+1).
func ema20(history []domain.Bar) float64 {
	const k = 2.0 / 21.0
	start := len(history) - 40
	if start < 0 {
		start = 0
	}
	window := history[start:]
	ema := window[0].Close
	for _, b := range window[1:] {
		ema = b.Close*k + ema*(1-k)
	}
	return ema
}

// atr14 is the mean true range of the last 14 bars.
func atr14(history []domain.Bar) float64 {
	const n = 14
	start := len(history) - n - 1
	if start < 0 {
		start = 0
	}
	window := history[start:]
	if len(window) < 2 {
		if len(window) == 1 {
			return window[0].Range()
		}
		return 0
	}
	var sum float64
	count := 0
	for i := 1; i < len(window); i++ {
		b, p := window[i], window[i-1]
		tr := b.Range()
		if d := math.Abs(b.High - p.Close); d > tr {
			tr = d
		}
		if d := math.Abs(b.Low - p.Close); d > tr {
			tr = d
		}
		sum += tr
		count++
	}
	return sum / float64(count)
}
