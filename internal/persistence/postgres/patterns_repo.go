package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/persistence"
)

// pqUniqueViolation is the Postgres error code for a unique constraint hit.
const pqUniqueViolation = "23505"

type patternsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPatternsRepo creates the Postgres patterns repository.
func NewPatternsRepo(db *sqlx.DB, timeout time.Duration) persistence.PatternsRepo {
	return &patternsRepo{db: db, timeout: timeout}
}

func (r *patternsRepo) SavePattern(ctx context.Context, rec domain.PatternRecord) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metaJSON, err := json.Marshal(rec.Meta)
	if err != nil {
		return 0, fmt.Errorf("marshal pattern meta: %w", err)
	}

	const query = `
		INSERT INTO patterns (symbol, pattern_type, timeframe, completion_bar_start_utc,
			direction, entry, stop, target, confidence, meta_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	err = r.db.QueryRowxContext(ctx, query,
		rec.Symbol, string(rec.Pattern), string(rec.Timeframe), rec.CompletionBarStart,
		string(rec.Direction), rec.Entry, rec.Stop, rec.Target, rec.Confidence, metaJSON).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pattern: %w", err)
	}
	return id, nil
}

// InsertAlert records a posted alert. A dedup_key conflict means the alert
// already went out; reported as !fresh, not as an error.
func (r *patternsRepo) InsertAlert(ctx context.Context, a persistence.Alert) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO alerts (id, pattern_id, symbol, pattern_type, timeframe,
			alert_ts_utc, payload_json, dedup_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.PatternID, a.Symbol, a.PatternType, a.Timeframe,
		a.AlertTS, a.PayloadJSON, a.DedupKey)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return true, nil
}

// MarkAlert probes the dedup key with a minimal row. Used by the dedup
// store as its durable tier.
func (r *patternsRepo) MarkAlert(ctx context.Context, dedupKey string) (bool, error) {
	a := persistence.Alert{
		ID:       uuid.NewString(),
		AlertTS:  time.Now().UTC(),
		DedupKey: dedupKey,
	}
	// key layout: symbol|pattern|timeframe|dateET
	if parts := strings.SplitN(dedupKey, "|", 4); len(parts) == 4 {
		a.Symbol, a.PatternType, a.Timeframe = parts[0], parts[1], parts[2]
	}
	return r.InsertAlert(ctx, a)
}
