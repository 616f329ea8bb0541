package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/oraklabs/oraklscan/internal/timeutil"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

func TestFlowCooldown(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 10, 22, 10, 0, 0, 0, timeutil.ET())}
	s := NewDedupStore(4*time.Hour, clock, nil, nil)
	ctx := context.Background()

	key := "AAPL|CALL|200.00|2025-12-19"
	if !s.AllowFlow(ctx, key) {
		t.Fatal("first alert suppressed")
	}
	if s.AllowFlow(ctx, key) {
		t.Error("repeat inside cooldown allowed")
	}

	clock.t = clock.t.Add(3 * time.Hour)
	if s.AllowFlow(ctx, key) {
		t.Error("repeat at 3h of a 4h cooldown allowed")
	}

	clock.t = clock.t.Add(90 * time.Minute)
	if !s.AllowFlow(ctx, key) {
		t.Error("alert after cooldown expiry suppressed")
	}
}

func TestPatternOncePerDay(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 10, 22, 10, 2, 0, 0, timeutil.ET())}
	s := NewDedupStore(4*time.Hour, clock, nil, nil)
	ctx := context.Background()

	key := "AAPL|3-2-2|60m|2025-10-22"
	if !s.AllowPattern(ctx, key) {
		t.Fatal("first pattern alert suppressed")
	}
	if s.AllowPattern(ctx, key) {
		t.Error("same-day repeat allowed")
	}

	// Hours later, still the same ET date: still suppressed.
	clock.t = clock.t.Add(8 * time.Hour)
	if s.AllowPattern(ctx, key) {
		t.Error("same-day repeat after hours allowed")
	}

	// Next ET date clears the day scope. (A real scan would carry the new
	// date in its key; same-key readmission proves the reset happened.)
	clock.t = clock.t.AddDate(0, 0, 1)
	if !s.AllowPattern(ctx, key) {
		t.Error("alert suppressed after date rollover")
	}
}

// durableSeen fakes the persistence tier: every key it has ever seen stays
// seen, which is what survives a process restart.
type durableSeen struct {
	seen map[string]bool
}

func (d *durableSeen) MarkAlert(ctx context.Context, key string) (bool, error) {
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func TestPatternDedupSurvivesRestart(t *testing.T) {
	durable := &durableSeen{seen: make(map[string]bool)}
	clock := &manualClock{t: time.Date(2025, 10, 22, 10, 2, 0, 0, timeutil.ET())}
	ctx := context.Background()
	key := "AAPL|3-2-2|60m|2025-10-22"

	first := NewDedupStore(4*time.Hour, clock, nil, durable)
	if !first.AllowPattern(ctx, key) {
		t.Fatal("first alert suppressed")
	}

	// New store, same durable tier: the restart case.
	second := NewDedupStore(4*time.Hour, clock, nil, durable)
	if second.AllowPattern(ctx, key) {
		t.Error("restart re-emitted a posted pattern alert")
	}
}

func TestDistinctKeysIndependent(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 10, 22, 10, 2, 0, 0, timeutil.ET())}
	s := NewDedupStore(4*time.Hour, clock, nil, nil)
	ctx := context.Background()

	if !s.AllowPattern(ctx, "AAPL|3-2-2|60m|2025-10-22") {
		t.Fatal("first key suppressed")
	}
	if !s.AllowPattern(ctx, "SPY|3-2-2|60m|2025-10-22") {
		t.Error("unrelated symbol suppressed")
	}
	if !s.AllowPattern(ctx, "AAPL|2-2|240m|2025-10-22") {
		t.Error("unrelated pattern suppressed")
	}
}
