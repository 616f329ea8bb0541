// Package http serves the operational surface: health, per-worker stats,
// and Prometheus metrics. Signals never flow through here; the only user
// channel is the chat webhook.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// HealthSource is the supervisor slice the server reads from.
type HealthSource interface {
	Health() HealthReport
	WorkerDetails() []WorkerDetail
}

// HealthReport is the aggregate /health answer.
type HealthReport struct {
	Status    string            `json:"status"` // healthy | degraded | stopped
	Workers   map[string]string `json:"workers"`
	UptimeSec float64           `json:"uptime_seconds"`
	Timestamp time.Time         `json:"timestamp"`
}

// WorkerDetail is one worker's /workers entry.
type WorkerDetail struct {
	Strategy            string        `json:"strategy"`
	State               string        `json:"state"`
	Scans               int64         `json:"scans"`
	Signals             int64         `json:"signals"`
	Alerts              int64         `json:"alerts"`
	Errors              int64         `json:"errors"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastScanAt          time.Time     `json:"last_scan_at"`
	LastScanDuration    time.Duration `json:"last_scan_duration_ns"`
	AvgScanDuration     time.Duration `json:"avg_scan_duration_ns"`
	RecentSkips         []SkipRecord  `json:"recent_skips,omitempty"`
}

// SkipRecord is one structured skip reason kept for diagnostics.
type SkipRecord struct {
	At     time.Time `json:"at"`
	Symbol string    `json:"symbol"`
	Reason string    `json:"reason"`
}

// Server is the operational HTTP server.
type Server struct {
	srv *http.Server
}

// NewServer wires the routes. metricsHandler serves /metrics.
func NewServer(addr string, source HealthSource, metricsHandler http.Handler) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		report := source.Health()
		code := http.StatusOK
		if report.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}).Methods(http.MethodGet)

	r.HandleFunc("/workers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, source.WorkerDetails())
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		log.Info().Str("component", "http").Str("addr", s.srv.Addr).Msg("Operational server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Str("component", "http").Err(err).Msg("Operational server failed")
		}
	}()
}

// Shutdown drains with the caller's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Str("component", "http").Err(err).Msg("Response encode failed")
	}
}
