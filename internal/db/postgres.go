package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

var (
	openPool = pgxpool.New
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// InitPostgres opens the package pool. An empty dsn leaves Pool nil, which
// turns price history off.
func InitPostgres(ctx context.Context, dsn string) error {
	if dsn == "" {
		slog.Warn("DATABASE_URL not set, price history disabled")
		return nil
	}

	pool, err := openPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pingPool(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	Pool = pool
	slog.Info("connected to postgres")
	return nil
}

// Close releases the package pool if it was opened.
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}
