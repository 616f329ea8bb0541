// Package db manages the optional Postgres connection. No DATABASE_URL
// means no manager: every repo handle is nil and callers skip persistence.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog/log"

	"github.com/oraklabs/oraklscan/internal/persistence"
	"github.com/oraklabs/oraklscan/internal/persistence/postgres"
)

// Config holds connection settings.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultConfig returns pool settings sized for a single worker process.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    10 * time.Second,
	}
}

// Manager owns the connection and the repository handles.
type Manager struct {
	db    *sqlx.DB
	Repos persistence.Repository
}

// NewManager connects, pings, migrates, and wires the repos. An empty URL
// returns (nil, nil): persistence disabled.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	sqlxDB, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlxDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlxDB.PingContext(pingCtx); err != nil {
		sqlxDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := postgres.Migrate(ctx, sqlxDB); err != nil {
		sqlxDB.Close()
		return nil, err
	}

	m := &Manager{
		db: sqlxDB,
		Repos: persistence.Repository{
			Bars:     postgres.NewBarsRepo(sqlxDB, cfg.QueryTimeout),
			Patterns: postgres.NewPatternsRepo(sqlxDB, cfg.QueryTimeout),
			Jobs:     postgres.NewJobsRepo(sqlxDB, cfg.QueryTimeout),
		},
	}
	log.Info().Str("component", "db").Msg("Postgres persistence enabled")
	return m, nil
}

// Close releases the connection pool. Nil-safe.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}
