package timeutil

import (
	"testing"
	"time"
)

func TestTradingDateRollsAtMidnightET(t *testing.T) {
	// 03:59 UTC on Oct 23 is 23:59 ET on Oct 22.
	before := time.Date(2025, 10, 23, 3, 59, 0, 0, time.UTC)
	after := time.Date(2025, 10, 23, 4, 1, 0, 0, time.UTC)

	if got := TradingDate(before); got != "2025-10-22" {
		t.Errorf("TradingDate(23:59 ET) = %s, want 2025-10-22", got)
	}
	if got := TradingDate(after); got != "2025-10-23" {
		t.Errorf("TradingDate(00:01 ET) = %s, want 2025-10-23", got)
	}
}

func TestNextMidnightSpansDSTDays(t *testing.T) {
	// 2025-03-09 is the spring-forward date; the ET day is 23 hours long.
	springEve := time.Date(2025, 3, 9, 1, 0, 0, 0, ET())
	next := NextMidnightET(springEve)
	if next.Format("2006-01-02 15:04") != "2025-03-10 00:00" {
		t.Errorf("next midnight = %v", next)
	}
	if d := next.Sub(MidnightET(springEve)); d != 23*time.Hour {
		t.Errorf("spring-forward day length = %v, want 23h", d)
	}

	// 2025-11-02 falls back; 25-hour day.
	fallEve := time.Date(2025, 11, 2, 1, 0, 0, 0, ET())
	if d := NextMidnightET(fallEve).Sub(MidnightET(fallEve)); d != 25*time.Hour {
		t.Errorf("fall-back day length = %v, want 25h", d)
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{StartHour: 10, StartMin: 1, EndHour: 10, EndMin: 6}

	tests := []struct {
		clock string
		want  bool
	}{
		{"10:00", false},
		{"10:01", true},
		{"10:03", true},
		{"10:05", true},
		{"10:06", false},
		{"09:59", false},
	}
	for _, tt := range tests {
		ts, _ := time.Parse("15:04", tt.clock)
		at := time.Date(2025, 10, 22, ts.Hour(), ts.Minute(), 30, 0, ET())
		if got := w.Contains(at); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.clock, got, tt.want)
		}
	}
}

func TestWindowMinutesUntil(t *testing.T) {
	w := Window{StartHour: 8, StartMin: 0, EndHour: 8, EndMin: 5}

	at := time.Date(2025, 10, 22, 7, 56, 0, 0, ET())
	if got := w.MinutesUntil(at); got != 4 {
		t.Errorf("MinutesUntil(07:56) = %d, want 4", got)
	}
	inside := time.Date(2025, 10, 22, 8, 2, 0, 0, ET())
	if got := w.MinutesUntil(inside); got != -1 {
		t.Errorf("MinutesUntil inside window = %d, want -1", got)
	}
}

func TestAtHourETSpringForward(t *testing.T) {
	// 02:00 does not exist on 2025-03-09; the resolved instant must not
	// panic and must land at or after the jump.
	day := time.Date(2025, 3, 9, 12, 0, 0, 0, ET())
	got := AtHourET(day, 2)
	if got.IsZero() {
		t.Fatal("AtHourET returned zero time")
	}
	if h := got.Hour(); h != 1 && h != 2 && h != 3 {
		t.Errorf("resolved nonexistent hour to %d:00", h)
	}
}
