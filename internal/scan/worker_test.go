package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oraklabs/oraklscan/internal/net/circuit"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

type fakeStrategy struct {
	name string
	scan func(ctx context.Context, symbol string) (SymbolResult, error)

	mu      sync.Mutex
	scanned []string
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) ScanSymbol(ctx context.Context, symbol string) (SymbolResult, error) {
	f.mu.Lock()
	f.scanned = append(f.scanned, symbol)
	f.mu.Unlock()
	return f.scan(ctx, symbol)
}

func etTime(hour, min int) time.Time {
	return time.Date(2025, 10, 22, hour, min, 0, 0, timeutil.ET())
}

func TestScheduleTightensNearWindows(t *testing.T) {
	s := Schedule{
		Interval: 5 * time.Minute,
		Windows:  []timeutil.Window{{StartHour: 10, StartMin: 1, EndHour: 10, EndMin: 6}},
	}

	require.Equal(t, 60*time.Second, s.next(etTime(10, 3)), "inside window")
	require.Equal(t, 120*time.Second, s.next(etTime(9, 57)), "four minutes before open")
	require.Equal(t, 5*time.Minute, s.next(etTime(9, 0)), "far from window")
	require.Equal(t, 5*time.Minute, s.next(etTime(10, 30)), "after window")
}

func TestScheduleActiveGate(t *testing.T) {
	active := timeutil.Window{StartHour: 4, StartMin: 0, EndHour: 20, EndMin: 0}
	s := Schedule{Interval: 2 * time.Minute, Active: &active}

	require.True(t, s.active(etTime(9, 30)))
	require.False(t, s.active(etTime(22, 0)))
	require.Equal(t, 2*time.Minute, s.idleSleep())

	long := Schedule{Interval: time.Hour, Active: &active}
	require.Equal(t, 5*time.Minute, long.idleSleep(), "idle sleep is capped")
}

func TestCycleDeadlineScalesWithWatchlist(t *testing.T) {
	require.Equal(t, 5*time.Minute, cycleDeadline(5, 10), "small watchlist floors at five minutes")
	require.Equal(t, 11*time.Minute, cycleDeadline(200, 10), "20 waves of 30s plus 60s")
	require.Equal(t, 5*time.Minute, cycleDeadline(0, 0))
}

func TestFanOutIsolatesSymbolFailures(t *testing.T) {
	boom := errors.New("snapshot decode failed")
	strategy := &fakeStrategy{
		name: "golden",
		scan: func(_ context.Context, symbol string) (SymbolResult, error) {
			if symbol == "BAD" {
				return SymbolResult{}, boom
			}
			return SymbolResult{Signals: 1, Alerts: 1}, nil
		},
	}
	w := NewWorker(WorkerConfig{
		Strategy:  strategy,
		Watchlist: []string{"AAPL", "BAD", "TSLA"},
		Schedule:  Schedule{Interval: time.Minute},
	})

	err := w.runCycle(context.Background())
	require.ErrorIs(t, err, boom)

	d := w.Detail()
	require.EqualValues(t, 1, d.Scans)
	require.EqualValues(t, 2, d.Signals, "healthy symbols still scanned")
	require.EqualValues(t, 2, d.Alerts)
	require.EqualValues(t, 1, d.Errors)
	require.Len(t, strategy.scanned, 3)
}

func TestFanOutAbortsCycleOnOpenCircuit(t *testing.T) {
	strategy := &fakeStrategy{
		name: "golden",
		scan: func(ctx context.Context, symbol string) (SymbolResult, error) {
			if symbol == "FIRST" {
				return SymbolResult{}, circuit.ErrCircuitOpen
			}
			// later symbols must see the cancelled cycle context
			<-ctx.Done()
			return SymbolResult{}, nil
		},
	}
	w := NewWorker(WorkerConfig{
		Strategy:    strategy,
		Watchlist:   []string{"FIRST", "SECOND"},
		Schedule:    Schedule{Interval: time.Minute},
		Concurrency: 2,
	})

	err := w.runCycle(context.Background())
	require.ErrorIs(t, err, circuit.ErrCircuitOpen)
}

func TestWorkerDegradesAfterRepeatedFailures(t *testing.T) {
	w := NewWorker(WorkerConfig{
		Strategy:  &fakeStrategy{name: "golden", scan: nil},
		Watchlist: []string{"AAPL"},
	})
	fail := errors.New("provider down")

	for i := 0; i < unhealthyThreshold-1; i++ {
		w.record(0, 0, 1, time.Second, fail)
		require.Equal(t, StateHealthy, w.State(), "below the threshold")
	}
	w.record(0, 0, 1, time.Second, fail)
	require.Equal(t, StateDegraded, w.State())

	w.record(1, 0, 0, time.Second, nil)
	require.Equal(t, StateHealthy, w.State(), "one success recovers")
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := nextBackoff(0)
	require.Equal(t, 5*time.Second, b)
	for i := 0; i < 10; i++ {
		b = nextBackoff(b)
	}
	require.Equal(t, defaultMaxBackoff, b)
}

func TestSupervisorHealthAggregation(t *testing.T) {
	mk := func(name string) *Worker {
		return NewWorker(WorkerConfig{
			Strategy:  &fakeStrategy{name: name, scan: nil},
			Watchlist: []string{"AAPL"},
		})
	}
	wa, wb := mk("golden"), mk("strat322")
	sup := NewSupervisor(SupervisorConfig{
		Workers: []*Worker{wa, wb},
		Clock:   timeutil.FixedClock{T: etTime(10, 0)},
	})
	sup.startedAt = etTime(9, 0)

	report := sup.Health()
	require.Equal(t, "healthy", report.Status, "starting workers count as healthy")
	require.Equal(t, 3600.0, report.UptimeSec)

	wb.setState(StateDegraded)
	require.Equal(t, "degraded", sup.Health().Status)

	wa.setState(StateStopped)
	wb.setState(StateStopped)
	require.Equal(t, "stopped", sup.Health().Status)

	details := sup.WorkerDetails()
	require.Len(t, details, 2)
	require.Equal(t, "golden", details[0].Strategy)
}
