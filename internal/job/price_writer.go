package job

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"pricefeed/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const writeTimeout = 10 * time.Second

type SnapshotRecorder interface {
	InsertSnapshot(ctx context.Context, batchID uuid.UUID, records []domain.PriceRecord) error
}

// PriceWriter persists fetched snapshots off the request path. Snapshots are
// queued on a bounded channel and written by a single worker; when the queue
// is full new snapshots are dropped.
type PriceWriter struct {
	tracer   trace.Tracer
	logger   *slog.Logger
	recorder SnapshotRecorder
	queue    chan *domain.CacheEntry
	newID    func() uuid.UUID

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func NewPriceWriter(tracer trace.Tracer, recorder SnapshotRecorder, queueSize int) *PriceWriter {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &PriceWriter{
		tracer:   tracer,
		logger:   slog.Default(),
		recorder: recorder,
		queue:    make(chan *domain.CacheEntry, queueSize),
		newID:    uuid.New,
	}
}

// Enqueue hands a snapshot to the worker without blocking.
func (w *PriceWriter) Enqueue(entry *domain.CacheEntry) bool {
	select {
	case w.queue <- entry:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Start drains the queue until ctx is cancelled, then flushes what is left.
func (w *PriceWriter) Start(ctx context.Context) {
	w.logger.Info("price writer starting", slog.Int("queue_size", cap(w.queue)))
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Info("price writer stopped",
				slog.Int64("written", w.written.Load()),
				slog.Int64("failed", w.failed.Load()),
				slog.Int64("dropped", w.dropped.Load()))
			return
		case entry := <-w.queue:
			w.write(ctx, entry)
		}
	}
}

func (w *PriceWriter) drain() {
	for {
		select {
		case entry := <-w.queue:
			w.write(context.Background(), entry)
		default:
			return
		}
	}
}

func (w *PriceWriter) write(ctx context.Context, entry *domain.CacheEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	ctx, span := w.tracer.Start(ctx, "price-writer.write")
	defer span.End()

	batchID := w.newID()
	if err := w.recorder.InsertSnapshot(ctx, batchID, entry.Records()); err != nil {
		w.failed.Add(1)
		w.logger.Error("price snapshot write failed",
			slog.String("batch_id", batchID.String()),
			slog.Int("records", len(entry.Data)),
			slog.Any("err", err))
		return
	}
	w.written.Add(1)
}

// Stats reports written, failed and dropped snapshot counts.
func (w *PriceWriter) Stats() (written, failed, dropped int64) {
	return w.written.Load(), w.failed.Load(), w.dropped.Load()
}
