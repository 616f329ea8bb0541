// Package timeutil centralizes America/New_York handling. Every component
// that reasons about sessions, alert windows, or trading dates goes through
// this package so DST behavior is decided in exactly one place.
package timeutil

import (
	"sync"
	"time"
)

var (
	etOnce sync.Once
	etLoc  *time.Location
)

// ET returns the America/New_York location. The binary imports time/tzdata,
// so lookup succeeds without a system zoneinfo database; if it still fails
// the fixed EST-05 offset is used rather than crashing.
func ET() *time.Location {
	etOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("EST", -5*3600)
		}
		etLoc = loc
	})
	return etLoc
}

// Clock abstracts wall time so window and dedup logic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T. Test helper.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// TradingDate formats the ET calendar date containing t; this is the date
// component of pattern dedup keys.
func TradingDate(t time.Time) string {
	return t.In(ET()).Format("2006-01-02")
}

// MidnightET returns 00:00 ET of the date containing t.
func MidnightET(t time.Time) time.Time {
	et := t.In(ET())
	return time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, ET())
}

// NextMidnightET returns 00:00 ET of the day after the date containing t.
// AddDate handles the 23h/25h DST days.
func NextMidnightET(t time.Time) time.Time {
	return MidnightET(t).AddDate(0, 0, 1)
}

// HourET returns t's ET clock hour.
func HourET(t time.Time) int {
	return t.In(ET()).Hour()
}

// AtHourET returns targetHour:00 ET on the date containing t. On a
// spring-forward day a nonexistent hour resolves to the instant the clock
// jumps to, which is what interval containment checks want.
func AtHourET(t time.Time, targetHour int) time.Time {
	et := t.In(ET())
	return time.Date(et.Year(), et.Month(), et.Day(), targetHour, 0, 0, 0, ET())
}

// Window is a daily ET clock interval [Start, End) in minutes since
// midnight, e.g. 10:01-10:06.
type Window struct {
	StartHour, StartMin int
	EndHour, EndMin     int
}

// Contains reports whether t's ET clock time falls inside the window.
func (w Window) Contains(t time.Time) bool {
	et := t.In(ET())
	mins := et.Hour()*60 + et.Minute()
	return mins >= w.StartHour*60+w.StartMin && mins < w.EndHour*60+w.EndMin
}

// MinutesUntil returns how many whole minutes remain until the window
// opens today, or -1 when it already opened or passed.
func (w Window) MinutesUntil(t time.Time) int {
	et := t.In(ET())
	mins := et.Hour()*60 + et.Minute()
	start := w.StartHour*60 + w.StartMin
	if mins >= start {
		return -1
	}
	return start - mins
}
