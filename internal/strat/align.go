package strat

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// BarContaining returns the bar whose [start, end) interval covers
// targetHour:00 ET on the date containing day. A miss is logged with the
// distance to the nearest bar so feed misalignment shows up in diagnostics
// instead of silently producing no patterns.
func BarContaining(bars []domain.Bar, day time.Time, targetHour int) (domain.Bar, bool) {
	target := timeutil.AtHourET(day, targetHour)

	for _, b := range bars {
		if b.Contains(target) {
			return b, true
		}
	}

	if len(bars) > 0 {
		nearest := math.Inf(1)
		for _, b := range bars {
			if d := math.Abs(b.Start.Sub(target).Seconds()); d < nearest {
				nearest = d
			}
		}
		log.Warn().Str("component", "strat").
			Time("target", target).
			Float64("nearest_delta_seconds", nearest).
			Int("bars", len(bars)).
			Msg("No bar contains target hour")
	}
	return domain.Bar{}, false
}

// BarsForHours resolves several target hours at once. The second return
// lists the hours with no containing bar.
func BarsForHours(bars []domain.Bar, day time.Time, hours []int) (map[int]domain.Bar, []int) {
	found := make(map[int]domain.Bar, len(hours))
	var missing []int
	for _, h := range hours {
		if b, ok := BarContaining(bars, day, h); ok {
			found[h] = b
		} else {
			missing = append(missing, h)
		}
	}
	return found, missing
}

// PreviousBar returns the bar with the largest start strictly before b's
// start, regardless of its clock hour. Sequential order is authoritative:
// across weekends, holidays, and DST days the predecessor is simply the bar
// that came before.
func PreviousBar(bars []domain.Bar, b domain.Bar) (domain.Bar, bool) {
	var prev domain.Bar
	found := false
	for _, candidate := range bars {
		if candidate.Start.Before(b.Start) {
			if !found || candidate.Start.After(prev.Start) {
				prev = candidate
				found = true
			}
		}
	}
	return prev, found
}

// CheckAlignment verifies every bar starts on a canonical ET boundary for
// the timeframe: hourly bars at :00, 240-minute bars at 00/04/08/12/16/20,
// 720-minute bars at 08:00 or 20:00. A provider returning differently
// anchored buckets is rejected here rather than fed into pattern detection.
func CheckAlignment(bars []domain.Bar, tf domain.Timeframe) error {
	for _, b := range bars {
		et := b.Start.In(timeutil.ET())
		if et.Minute() != 0 || et.Second() != 0 {
			return fmt.Errorf("bar at %s: start not on the hour in ET", et.Format(time.RFC3339))
		}
		switch tf {
		case domain.Timeframe60m:
		case domain.Timeframe240m:
			if et.Hour()%4 != 0 {
				return fmt.Errorf("bar at %s: 240m start hour %d not on a 4h boundary", et.Format(time.RFC3339), et.Hour())
			}
		case domain.Timeframe720m:
			if et.Hour() != 8 && et.Hour() != 20 {
				return fmt.Errorf("bar at %s: 720m start hour %d not 08 or 20", et.Format(time.RFC3339), et.Hour())
			}
		}
	}
	return nil
}
