package repository

import (
	"context"
	"fmt"
	"time"

	"pricefeed/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createPriceSnapshotsTable = `
CREATE TABLE IF NOT EXISTS price_snapshots (
    batch_id          UUID             NOT NULL,
    symbol            TEXT             NOT NULL,
    price             DOUBLE PRECISION NOT NULL,
    price_change      DOUBLE PRECISION NOT NULL DEFAULT 0,
    price_change_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
    volume            DOUBLE PRECISION NOT NULL DEFAULT 0,
    high              DOUBLE PRECISION NOT NULL DEFAULT 0,
    low               DOUBLE PRECISION NOT NULL DEFAULT 0,
    source            TEXT             NOT NULL,
    observed_at       TIMESTAMPTZ      NOT NULL,
    PRIMARY KEY (symbol, observed_at)
);
`

const insertSnapshotSQL = `
INSERT INTO price_snapshots
    (batch_id, symbol, price, price_change, price_change_pct, volume, high, low, source, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (symbol, observed_at) DO UPDATE SET
    batch_id = EXCLUDED.batch_id,
    price = EXCLUDED.price,
    price_change = EXCLUDED.price_change,
    price_change_pct = EXCLUDED.price_change_pct,
    volume = EXCLUDED.volume,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    source = EXCLUDED.source`

const selectHistorySQL = `
SELECT symbol, price, price_change, price_change_pct, volume, high, low, source, observed_at
FROM price_snapshots
WHERE symbol = $1
ORDER BY observed_at DESC
LIMIT $2`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PriceRepository stores fetched snapshots for history queries.
type PriceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRepository(pool PgxPool, tracer trace.Tracer) *PriceRepository {
	return &PriceRepository{pool: pool, tracer: tracer}
}

// RunMigrations creates the snapshot table when it does not exist yet.
// cmd/migrate owns the full schema history.
func (r *PriceRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "price-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createPriceSnapshotsTable)
	return err
}

// InsertSnapshot writes every record of one fetch under a shared batch id.
func (r *PriceRepository) InsertSnapshot(ctx context.Context, batchID uuid.UUID, records []domain.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "price-repo.insert-snapshot")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch_id", batchID.String()),
		attribute.Int("records", len(records)),
	)

	batch := &pgx.Batch{}
	for _, p := range records {
		batch.Queue(insertSnapshotSQL,
			batchID.String(), p.Symbol, p.Price, p.PriceChange24h, p.PriceChangePercent24h,
			p.Volume24h, p.High24h, p.Low24h, string(p.Source), p.ObservedAt(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, p := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert %s: %w", p.Symbol, err)
		}
	}
	return nil
}

// GetHistory returns the newest snapshots for symbol, newest first.
func (r *PriceRepository) GetHistory(ctx context.Context, symbol string, limit int) ([]domain.PriceRecord, error) {
	ctx, span := r.tracer.Start(ctx, "price-repo.get-history")
	defer span.End()

	rows, err := r.pool.Query(ctx, selectHistorySQL, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.PriceRecord, 0, limit)
	for rows.Next() {
		var (
			p      domain.PriceRecord
			source string
			obs    time.Time
		)
		if err := rows.Scan(&p.Symbol, &p.Price, &p.PriceChange24h, &p.PriceChangePercent24h,
			&p.Volume24h, &p.High24h, &p.Low24h, &source, &obs); err != nil {
			return nil, err
		}
		p.Source = domain.Source(source)
		p.Timestamp = obs.UnixMilli()
		history = append(history, p)
	}
	return history, rows.Err()
}
