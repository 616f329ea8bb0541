package scan

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/alerts"
	httpapi "github.com/oraklabs/oraklscan/internal/interfaces/http"
	"github.com/oraklabs/oraklscan/internal/net/httpclient"
	"github.com/oraklabs/oraklscan/internal/telemetry"
	"github.com/oraklabs/oraklscan/internal/timeutil"
)

const (
	startStagger  = 5 * time.Second
	shutdownGrace = 30 * time.Second
)

// Supervisor owns the workers and the operational server. It starts workers
// with a stagger so their first cycles do not hit the provider at once, and
// tears everything down in order on shutdown.
type Supervisor struct {
	workers []*Worker
	server  *httpapi.Server
	pool    *httpclient.Pool
	dedup   *alerts.DedupStore
	metrics *telemetry.Metrics
	clock   timeutil.Clock

	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// SupervisorConfig lists the parts the supervisor owns. Server, pool, and
// dedup may be nil.
type SupervisorConfig struct {
	Workers []*Worker
	Server  *httpapi.Server
	Pool    *httpclient.Pool
	Dedup   *alerts.DedupStore
	Metrics *telemetry.Metrics
	Clock   timeutil.Clock
}

// NewSupervisor builds the supervisor.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Supervisor{
		workers: cfg.Workers,
		server:  cfg.Server,
		pool:    cfg.Pool,
		dedup:   cfg.Dedup,
		metrics: cfg.Metrics,
		clock:   clock,
	}
}

// AttachServer hands over the operational server. The server needs the
// supervisor as its health source, so it is built second and attached here.
func (s *Supervisor) AttachServer(srv *httpapi.Server) { s.server = srv }

// Start launches the operational server and the workers. Worker starts are
// staggered sequentially; the call returns once the last worker is launched.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.startedAt = s.clock.Now()

	if s.server != nil {
		s.server.Start()
	}

	for i, w := range s.workers {
		if i > 0 {
			if !sleepCtx(ctx, startStagger) {
				return
			}
		}
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Run(ctx)
		}(w)
		log.Info().Str("strategy", w.Name()).Msg("Worker launched")
	}
}

// Shutdown cancels the workers, waits up to the grace period for them to
// drain, then releases the shared resources.
func (s *Supervisor) Shutdown() {
	log.Info().Str("component", "supervisor").Msg("Shutting down")
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Warn().Str("component", "supervisor").Msg("Workers did not drain within grace period")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Warn().Str("component", "supervisor").Err(err).Msg("Operational server shutdown failed")
		}
	}
	if s.dedup != nil {
		s.dedup.Flush(ctx)
	}
	if s.pool != nil {
		s.pool.CloseIdleConnections()
	}
	log.Info().Str("component", "supervisor").Msg("Shutdown complete")
}

// Health aggregates worker states. Degraded or stopped workers degrade the
// whole report; /health then answers 503 so orchestrators can restart us.
func (s *Supervisor) Health() httpapi.HealthReport {
	states := make(map[string]string, len(s.workers))
	status := "healthy"
	healthy := 0
	for _, w := range s.workers {
		st := w.State()
		states[w.Name()] = st
		switch st {
		case StateHealthy, StateStarting:
			healthy++
		default:
			status = "degraded"
		}
	}
	if len(s.workers) == 0 || healthy == 0 {
		status = "stopped"
	}
	if s.metrics != nil {
		s.metrics.WorkersHealthy.Set(float64(healthy))
	}
	return httpapi.HealthReport{
		Status:    status,
		Workers:   states,
		UptimeSec: s.clock.Now().Sub(s.startedAt).Seconds(),
		Timestamp: s.clock.Now().UTC(),
	}
}

// WorkerDetails builds the /workers payload.
func (s *Supervisor) WorkerDetails() []httpapi.WorkerDetail {
	details := make([]httpapi.WorkerDetail, 0, len(s.workers))
	for _, w := range s.workers {
		details = append(details, w.Detail())
	}
	return details
}
