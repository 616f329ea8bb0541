// Package persistence defines the storage contracts for bars, patterns,
// alerts, and job runs. The Postgres implementation lives in
// persistence/postgres; when no database is configured every repo is nil
// and callers treat the layer as absent.
package persistence

import (
	"context"
	"time"

	"github.com/oraklabs/oraklscan/internal/domain"
)

// Alert is one posted pattern alert row. DedupKey is unique; inserting a
// duplicate reports a dedup hit, not an error.
type Alert struct {
	ID          string    `json:"id" db:"id"`
	PatternID   int64     `json:"pattern_id" db:"pattern_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	PatternType string    `json:"pattern_type" db:"pattern_type"`
	Timeframe   string    `json:"timeframe" db:"timeframe"`
	AlertTS     time.Time `json:"alert_ts_utc" db:"alert_ts_utc"`
	PayloadJSON []byte    `json:"payload_json" db:"payload_json"`
	DedupKey    string    `json:"dedup_key" db:"dedup_key"`
}

// JobRun records one worker scan cycle for auditability.
type JobRun struct {
	ID             string     `json:"id" db:"id"`
	JobType        string     `json:"job_type" db:"job_type"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	SymbolsScanned int        `json:"symbols_scanned" db:"symbols_scanned"`
	PatternsFound  int        `json:"patterns_found" db:"patterns_found"`
	AlertsSent     int        `json:"alerts_sent" db:"alerts_sent"`
	ErrorsJSON     []byte     `json:"errors_json,omitempty" db:"errors_json"`
	Status         string     `json:"status" db:"status"`
}

// BarsRepo stores fetched bars and their STRAT classifications.
type BarsRepo interface {
	// SaveBars upserts bars on (symbol, timeframe, start_utc).
	SaveBars(ctx context.Context, bars []domain.Bar) error
	// SaveClassification records the bar's type against its predecessor.
	SaveClassification(ctx context.Context, bar domain.Bar, barType string, prev *domain.Bar) error
}

// PatternsRepo stores detections and their alerts.
type PatternsRepo interface {
	// SavePattern inserts a detection and returns its row id.
	SavePattern(ctx context.Context, rec domain.PatternRecord) (int64, error)
	// InsertAlert records a posted alert. Returns false when the dedup key
	// already exists (conflict, alert was posted before).
	InsertAlert(ctx context.Context, a Alert) (bool, error)
	// MarkAlert is the DurableDedup hook: a bare-key insert probe.
	MarkAlert(ctx context.Context, dedupKey string) (bool, error)
}

// JobsRepo records scan-cycle runs.
type JobsRepo interface {
	StartRun(ctx context.Context, jobType string) (JobRun, error)
	FinishRun(ctx context.Context, run JobRun) error
}

// Repository bundles the repos behind one handle. A nil Repository (or nil
// member) means persistence is disabled.
type Repository struct {
	Bars     BarsRepo
	Patterns PatternsRepo
	Jobs     JobsRepo
}
