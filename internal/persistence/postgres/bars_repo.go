package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/persistence"
)

type barsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBarsRepo creates the Postgres bars repository.
func NewBarsRepo(db *sqlx.DB, timeout time.Duration) persistence.BarsRepo {
	return &barsRepo{db: db, timeout: timeout}
}

// SaveBars upserts bars on the (symbol, timeframe, start_utc) key so
// refetching a window is idempotent.
func (r *barsRepo) SaveBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bars tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO bars (symbol, timeframe, start_utc, end_utc, o, h, l, c, v)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, start_utc) DO UPDATE
		SET end_utc = EXCLUDED.end_utc, o = EXCLUDED.o, h = EXCLUDED.h,
		    l = EXCLUDED.l, c = EXCLUDED.c, v = EXCLUDED.v`

	for _, b := range bars {
		if _, err := tx.ExecContext(ctx, query,
			b.Symbol, string(b.Timeframe), b.Start, b.End,
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("upsert bar %s %s: %w", b.Symbol, b.Start.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// SaveClassification records a bar's STRAT type, resolving row ids from the
// unique bar key.
func (r *barsRepo) SaveClassification(ctx context.Context, bar domain.Bar, barType string, prev *domain.Bar) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	barID, err := r.barID(ctx, bar)
	if err != nil {
		return err
	}

	var prevID *int64
	if prev != nil {
		id, err := r.barID(ctx, *prev)
		if err != nil {
			return err
		}
		prevID = &id
	}

	const query = `
		INSERT INTO classified_bars (bar_id, type, previous_bar_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (bar_id) DO UPDATE
		SET type = EXCLUDED.type, previous_bar_id = EXCLUDED.previous_bar_id`
	if _, err := r.db.ExecContext(ctx, query, barID, barType, prevID); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

func (r *barsRepo) barID(ctx context.Context, b domain.Bar) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx,
		`SELECT id FROM bars WHERE symbol = $1 AND timeframe = $2 AND start_utc = $3`,
		b.Symbol, string(b.Timeframe), b.Start).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolve bar id %s %s: %w", b.Symbol, b.Start.Format(time.RFC3339), err)
	}
	return id, nil
}
