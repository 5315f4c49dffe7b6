package job

import (
	"context"
	"log/slog"
	"time"

	"pricefeed/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PricePoller keeps the price cache warm and pushes every aggregate to subscribers.
type PricePoller struct {
	tracer       trace.Tracer
	logger       *slog.Logger
	source       AggregateSource
	publisher    Publisher
	pollInterval time.Duration
}

type AggregateSource interface {
	GetAllPrices(ctx context.Context) *domain.AggregateResult
}

type Publisher interface {
	Broadcast(result *domain.AggregateResult)
}

func NewPricePoller(tracer trace.Tracer, source AggregateSource, publisher Publisher, pollIntervalSecs int) *PricePoller {
	if pollIntervalSecs <= 0 {
		pollIntervalSecs = 10
	}
	return &PricePoller{
		tracer:       tracer,
		logger:       slog.Default(),
		source:       source,
		publisher:    publisher,
		pollInterval: time.Duration(pollIntervalSecs) * time.Second,
	}
}

// Start polls until ctx is cancelled.
func (p *PricePoller) Start(ctx context.Context) {
	p.logger.Info("price poller starting", slog.Duration("interval", p.pollInterval))
	p.pollLoop(ctx, p.pollInterval, p.poll)
	p.logger.Info("price poller stopped")
}

func (p *PricePoller) pollLoop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	// Run immediately on start
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (p *PricePoller) poll(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "price-poller.poll")
	defer span.End()

	result := p.source.GetAllPrices(ctx)
	if result == nil {
		return
	}
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Int("prices", len(result.Prices)),
	)
	if result.Status != domain.OutcomeFresh {
		p.logger.Warn("price poll degraded",
			slog.String("status", string(result.Status)),
			slog.String("warning", result.Warning))
	}
	if p.publisher != nil {
		p.publisher.Broadcast(result)
	}
}
