package scan

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	httpapi "github.com/oraklabs/oraklscan/internal/interfaces/http"
	"github.com/oraklabs/oraklscan/internal/net/budget"
	"github.com/oraklabs/oraklscan/internal/net/circuit"
	"github.com/oraklabs/oraklscan/internal/persistence"
	"github.com/oraklabs/oraklscan/internal/telemetry"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

// Worker states.
const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateStopped  = "stopped"
)

const (
	defaultConcurrency  = 10
	defaultMaxBackoff   = 5 * time.Minute
	unhealthyThreshold  = 25
	durationRingEntries = 100
	skipRingEntries     = 200
)

// WorkerConfig ties a strategy to its watchlist and schedule.
type WorkerConfig struct {
	Strategy    Strategy
	Watchlist   []string
	Schedule    Schedule
	Concurrency int
	Jobs        persistence.JobsRepo // nil disables job-run recording
	Metrics     *telemetry.Metrics
	Clock       timeutil.Clock
}

// Worker runs one strategy's scan loop. It never exits on its own: repeated
// failures back off and mark it degraded, but only context cancellation
// stops the loop.
type Worker struct {
	cfg  WorkerConfig
	name string

	mu          sync.Mutex
	state       string
	scans       int64
	signals     int64
	alerts      int64
	errs        int64
	consecutive int
	lastScanAt  time.Time
	durations   *durationRing
	skips       *skipRing
}

// NewWorker builds a worker; zero config fields get defaults.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock{}
	}
	return &Worker{
		cfg:       cfg,
		name:      cfg.Strategy.Name(),
		state:     StateStarting,
		durations: newDurationRing(durationRingEntries),
		skips:     newSkipRing(skipRingEntries),
	}
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Str("strategy", w.name).Int("symbols", len(w.cfg.Watchlist)).Msg("Worker started")
	defer func() {
		w.setState(StateStopped)
		log.Info().Str("strategy", w.name).Msg("Worker stopped")
	}()

	backoff := time.Duration(0)
	for {
		now := w.cfg.Clock.Now()
		if !w.cfg.Schedule.active(now) {
			if !sleepCtx(ctx, w.cfg.Schedule.idleSleep()) {
				return
			}
			continue
		}

		err := w.runCycle(ctx)
		if ctx.Err() != nil {
			return
		}

		sleep := w.cfg.Schedule.next(w.cfg.Clock.Now())
		if err != nil {
			backoff = nextBackoff(backoff)
			if errors.Is(err, circuit.ErrCircuitOpen) || errors.Is(err, budget.ErrBudgetExhausted) {
				// provider is fenced off; one interval is the right wait
				backoff = sleep
			}
			sleep = backoff
			log.Warn().Str("strategy", w.name).Err(err).Dur("backoff", sleep).Msg("Scan cycle failed")
		} else {
			backoff = 0
		}

		if !sleepCtx(ctx, sleep) {
			return
		}
	}
}

// runCycle scans the watchlist once under the adaptive deadline.
func (w *Worker) runCycle(ctx context.Context) error {
	deadline := cycleDeadline(len(w.cfg.Watchlist), w.cfg.Concurrency)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var run persistence.JobRun
	recording := w.cfg.Jobs != nil
	if recording {
		started, err := w.cfg.Jobs.StartRun(ctx, w.name)
		if err != nil {
			log.Warn().Str("strategy", w.name).Err(err).Msg("Job-run recording unavailable")
			recording = false
		} else {
			run = started
		}
	}

	start := time.Now()
	signals, alerts, scanned, errCount, firstErr := w.fanOut(ctx)
	elapsed := time.Since(start)

	w.record(signals, alerts, errCount, elapsed, firstErr)
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.ObserveScan(w.name, elapsed)
		w.cfg.Metrics.SignalsTotal.WithLabelValues(w.name).Add(float64(signals))
		w.cfg.Metrics.AlertsTotal.WithLabelValues(w.name).Add(float64(alerts))
		w.cfg.Metrics.ScanErrorsTotal.WithLabelValues(w.name).Add(float64(errCount))
	}

	if recording {
		run.SymbolsScanned = scanned
		run.PatternsFound = signals
		run.AlertsSent = alerts
		run.Status = "completed"
		if firstErr != nil {
			run.Status = "completed_with_errors"
			if payload, err := json.Marshal([]string{firstErr.Error()}); err == nil {
				run.ErrorsJSON = payload
			}
		}
		if err := w.cfg.Jobs.FinishRun(ctx, run); err != nil {
			log.Warn().Str("strategy", w.name).Err(err).Msg("Job-run finish failed")
		}
	}
	return firstErr
}

// fanOut scans symbols under the per-worker semaphore. Per-symbol failures
// are isolated; a circuit-open or budget-exhausted outcome aborts the rest
// of the cycle since every remaining call would fail the same way.
func (w *Worker) fanOut(parent context.Context) (signals, alerts, scanned, errCount int, firstErr error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

loop:
	for _, symbol := range w.cfg.Watchlist {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break loop
		}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := w.cfg.Strategy.ScanSymbol(ctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			scanned++
			if err != nil {
				errCount++
				if firstErr == nil {
					firstErr = err
				}
				log.Debug().Str("strategy", w.name).Str("symbol", symbol).Err(err).Msg("Symbol scan failed")
				if errors.Is(err, circuit.ErrCircuitOpen) || errors.Is(err, budget.ErrBudgetExhausted) {
					cancel()
				}
				return
			}
			signals += res.Signals
			alerts += res.Alerts
			for _, s := range res.Skips {
				w.skips.add(httpapi.SkipRecord{At: w.cfg.Clock.Now(), Symbol: s.Symbol, Reason: s.Reason})
			}
		}(symbol)
	}
	wg.Wait()
	return signals, alerts, scanned, errCount, firstErr
}

func (w *Worker) record(signals, alerts, errCount int, elapsed time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.scans++
	w.signals += int64(signals)
	w.alerts += int64(alerts)
	w.errs += int64(errCount)
	w.lastScanAt = w.cfg.Clock.Now()
	w.durations.add(elapsed)

	if err != nil {
		w.consecutive++
	} else {
		w.consecutive = 0
	}
	if w.consecutive >= unhealthyThreshold {
		w.state = StateDegraded
	} else {
		w.state = StateHealthy
	}
}

func (w *Worker) setState(s string) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// State returns the worker's health state.
func (w *Worker) State() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Name returns the strategy name.
func (w *Worker) Name() string { return w.name }

// Detail builds the /workers entry.
func (w *Worker) Detail() httpapi.WorkerDetail {
	w.mu.Lock()
	defer w.mu.Unlock()
	return httpapi.WorkerDetail{
		Strategy:            w.name,
		State:               w.state,
		Scans:               w.scans,
		Signals:             w.signals,
		Alerts:              w.alerts,
		Errors:              w.errs,
		ConsecutiveFailures: w.consecutive,
		LastScanAt:          w.lastScanAt,
		LastScanDuration:    w.durations.last(),
		AvgScanDuration:     w.durations.avg(),
		RecentSkips:         w.skips.snapshot(),
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current <= 0 {
		return 5 * time.Second
	}
	next := current * 2
	if next > defaultMaxBackoff {
		return defaultMaxBackoff
	}
	return next
}

// sleepCtx naps for d; false means the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
