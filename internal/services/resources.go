package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/cronrun/internal/lifecycle"
	"github.com/roach88/cronrun/internal/store"
)

// Names of the shared resources registered with the lifecycle manager.
const (
	ResourceJournal  = "journal"
	ResourcePostgres = "postgres"
)

// ErrNotConfigured is returned when a resource is acquired but its
// location was never configured.
var ErrNotConfigured = errors.New("resource not configured")

// JournalOpener opens the SQLite run journal at path.
func JournalOpener(path string) lifecycle.Opener {
	return func(context.Context) (any, lifecycle.ReleaseFunc, error) {
		if path == "" {
			return nil, nil, fmt.Errorf("journal: %w", ErrNotConfigured)
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// PostgresOpener opens a pgx connection pool for dsn and verifies it with a
// ping before handing it out.
func PostgresOpener(dsn string, logger *slog.Logger) lifecycle.Opener {
	return func(ctx context.Context) (any, lifecycle.ReleaseFunc, error) {
		if dsn == "" {
			return nil, nil, fmt.Errorf("postgres: %w", ErrNotConfigured)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("parse postgres config: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}

		logger.Info("postgres pool created",
			"host", poolCfg.ConnConfig.Host,
			"database", poolCfg.ConnConfig.Database,
			"max_conns", poolCfg.MaxConns,
		)
		return pool, func() error {
			pool.Close()
			return nil
		}, nil
	}
}

// Journal acquires the run journal through m.
func Journal(ctx context.Context, m *lifecycle.Manager) (*store.Store, error) {
	return lifecycle.Acquire[*store.Store](ctx, m, ResourceJournal)
}

// Postgres acquires the shared pool through m.
func Postgres(ctx context.Context, m *lifecycle.Manager) (*pgxpool.Pool, error) {
	return lifecycle.Acquire[*pgxpool.Pool](ctx, m, ResourcePostgres)
}
