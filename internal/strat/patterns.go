package strat

import (
	"fmt"
	"time"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// Alert windows, ET clock time. Detection runs whenever a worker asks;
// posting is gated on these by the scanner.
var (
	Window322       = timeutil.Window{StartHour: 10, StartMin: 1, EndHour: 10, EndMin: 6}
	Window22HeadsUp = timeutil.Window{StartHour: 4, StartMin: 0, EndHour: 4, EndMin: 5}
	Window22Signal  = timeutil.Window{StartHour: 8, StartMin: 0, EndHour: 8, EndMin: 5}
	WindowMiyagiAM  = timeutil.Window{StartHour: 8, StartMin: 0, EndHour: 8, EndMin: 5}
	WindowMiyagiPM  = timeutil.Window{StartHour: 20, StartMin: 0, EndHour: 20, EndMin: 5}
)

func isTwo(t BarType) bool { return t == TypeTwoUp || t == TypeTwoDown }

// Detect322 looks for the 3-2-2 reversal on 60-minute bars: an outside
// 08:00 bar, then two directional bars in opposite directions at 09:00 and
// 10:00. day selects the ET trading date to inspect.
func Detect322(symbol string, bars []domain.Bar, day time.Time) (domain.PatternRecord, bool) {
	found, missing := BarsForHours(bars, day, []int{8, 9, 10})
	if len(missing) > 0 {
		return domain.PatternRecord{}, false
	}
	bar8, bar9, bar10 := found[8], found[9], found[10]

	prev, ok := PreviousBar(bars, bar8)
	if !ok {
		return domain.PatternRecord{}, false
	}

	t9 := Classify(bar9, bar8)
	t10 := Classify(bar10, bar9)
	if Classify(bar8, prev) != TypeOutside || !isTwo(t9) || !isTwo(t10) || t9 == t10 {
		return domain.PatternRecord{}, false
	}

	rec := domain.PatternRecord{
		Symbol:             symbol,
		Pattern:            domain.Pattern322,
		Timeframe:          domain.Timeframe60m,
		CompletionBarStart: bar10.Start,
		Meta: map[string]string{
			"bar_8":  string(TypeOutside),
			"bar_9":  string(t9),
			"bar_10": string(t10),
		},
	}
	if t10 == TypeTwoUp {
		rec.Direction = domain.Call
		rec.Entry = bar9.High
		rec.Target = bar8.High
		rec.Stop = bar10.Low
	} else {
		rec.Direction = domain.Put
		rec.Entry = bar9.Low
		rec.Target = bar8.Low
		rec.Stop = bar10.High
	}
	return rec, true
}

// Detect22 looks for the 2-2 reversal on 4-hour bars: a directional 04:00
// bar whose range contains the 08:00 open, answered by the opposite
// directional bar. Entry is the break of the 04:00 extreme; target sits 2%
// beyond entry, stop at the opposite extreme of the 04:00 bar.
func Detect22(symbol string, bars []domain.Bar, day time.Time) (domain.PatternRecord, bool) {
	found, missing := BarsForHours(bars, day, []int{4, 8})
	if len(missing) > 0 {
		return domain.PatternRecord{}, false
	}
	bar4, bar8 := found[4], found[8]

	prev, ok := PreviousBar(bars, bar4)
	if !ok {
		return domain.PatternRecord{}, false
	}

	t4 := Classify(bar4, prev)
	t8 := Classify(bar8, bar4)
	if !isTwo(t4) || !isTwo(t8) || t4 == t8 {
		return domain.PatternRecord{}, false
	}
	if bar8.Open < bar4.Low || bar8.Open > bar4.High {
		return domain.PatternRecord{}, false
	}

	rec := domain.PatternRecord{
		Symbol:             symbol,
		Pattern:            domain.Pattern22,
		Timeframe:          domain.Timeframe240m,
		CompletionBarStart: bar8.Start,
		Meta: map[string]string{
			"bar_4": string(t4),
			"bar_8": string(t8),
		},
	}
	if t8 == TypeTwoUp {
		rec.Direction = domain.Call
		rec.Entry = bar4.High
		rec.Target = bar4.High * 1.02
		rec.Stop = bar4.Low
	} else {
		rec.Direction = domain.Put
		rec.Entry = bar4.Low
		rec.Target = bar4.Low * 0.98
		rec.Stop = bar4.High
	}
	return rec, true
}

// DetectMiyagi looks for the 1-3-1 sequence on the last four 12-hour bars:
// inside, outside, inside, then a directional bar closing through the
// midpoint of the second inside bar against its own direction. A 2U close
// above the trigger signals the reversal down (PUT); a 2D close below it
// signals the reversal up (CALL). Risk/reward is fixed 2:1 off the third
// bar's wrong-side extreme.
func DetectMiyagi(symbol string, bars []domain.Bar) (domain.PatternRecord, bool) {
	if len(bars) < 5 {
		return domain.PatternRecord{}, false
	}
	n := len(bars)
	c0, c1, c2, c3, c4 := bars[n-5], bars[n-4], bars[n-3], bars[n-2], bars[n-1]

	t4 := Classify(c4, c3)
	if Classify(c1, c0) != TypeInside ||
		Classify(c2, c1) != TypeOutside ||
		Classify(c3, c2) != TypeInside ||
		!isTwo(t4) {
		return domain.PatternRecord{}, false
	}

	trigger := (c3.High + c3.Low) / 2

	var direction domain.OptionKind
	var stop float64
	switch {
	case t4 == TypeTwoUp && c4.Close > trigger:
		direction = domain.Put
		stop = c3.High
	case t4 == TypeTwoDown && c4.Close < trigger:
		direction = domain.Call
		stop = c3.Low
	default:
		return domain.PatternRecord{}, false
	}

	risk := stop - trigger
	if risk < 0 {
		risk = -risk
	}
	target := trigger - 2*risk
	if direction == domain.Call {
		target = trigger + 2*risk
	}

	return domain.PatternRecord{
		Symbol:             symbol,
		Pattern:            domain.PatternMiyagi,
		Timeframe:          domain.Timeframe720m,
		CompletionBarStart: c4.Start,
		Direction:          direction,
		Entry:              trigger,
		Stop:               stop,
		Target:             target,
		Meta: map[string]string{
			"c4":      string(t4),
			"trigger": fmt.Sprintf("%.2f", trigger),
		},
	}, true
}
