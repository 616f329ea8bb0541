package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oraklabs/oraklscan/internal/persistence"
)

type jobsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewJobsRepo creates the Postgres job-run repository.
func NewJobsRepo(db *sqlx.DB, timeout time.Duration) persistence.JobsRepo {
	return &jobsRepo{db: db, timeout: timeout}
}

func (r *jobsRepo) StartRun(ctx context.Context, jobType string) (persistence.JobRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	run := persistence.JobRun{
		ID:        uuid.NewString(),
		JobType:   jobType,
		StartedAt: time.Now().UTC(),
		Status:    "running",
	}

	const query = `
		INSERT INTO job_runs (id, job_type, started_at, status)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, run.ID, run.JobType, run.StartedAt, run.Status); err != nil {
		return run, fmt.Errorf("start job run: %w", err)
	}
	return run, nil
}

func (r *jobsRepo) FinishRun(ctx context.Context, run persistence.JobRun) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if run.EndedAt == nil {
		now := time.Now().UTC()
		run.EndedAt = &now
	}
	if run.Status == "" || run.Status == "running" {
		run.Status = "completed"
	}

	const query = `
		UPDATE job_runs
		SET ended_at = $2, symbols_scanned = $3, patterns_found = $4,
		    alerts_sent = $5, errors_json = $6, status = $7
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		run.ID, run.EndedAt, run.SymbolsScanned, run.PatternsFound,
		run.AlertsSent, run.ErrorsJSON, run.Status); err != nil {
		return fmt.Errorf("finish job run: %w", err)
	}
	return nil
}
