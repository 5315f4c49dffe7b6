package service

import (
	"context"
	"log/slog"
	"time"

	"pricefeed/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultAggregateTimeout = 15 * time.Second

const (
	warnStale = "Live price feed unavailable; showing last known prices"
	warnEmpty = "Live price feed unavailable; no market data"
)

type PriceSource interface {
	GetAll(ctx context.Context) domain.PriceResult
}

type GoldQuoter interface {
	Record() domain.PriceRecord
}

// Aggregator merges the exchange tickers with the synthetic gold quote.
type Aggregator struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	source  PriceSource
	gold    GoldQuoter
	timeout time.Duration
	now     func() time.Time
}

func NewAggregator(tracer trace.Tracer, source PriceSource, gold GoldQuoter, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultAggregateTimeout
	}
	return &Aggregator{
		tracer:  tracer,
		logger:  slog.Default(),
		source:  source,
		gold:    gold,
		timeout: timeout,
		now:     time.Now,
	}
}

// GetAllPrices returns the merged price map. GOLD is always present.
func (a *Aggregator) GetAllPrices(ctx context.Context) *domain.AggregateResult {
	ctx, span := a.tracer.Start(ctx, "aggregator.get-all-prices")
	defer span.End()

	res := a.fetch(ctx)

	prices := make(map[string]domain.PriceRecord, len(res.Data)+1)
	for sym, rec := range res.Data {
		rec.Source = domain.SourceBinance
		prices[sym] = rec
	}
	binanceCount := len(prices)

	goldRec := a.gold.Record()
	prices[goldRec.Symbol] = goldRec

	ts := res.Timestamp
	if ts == 0 {
		ts = a.now().UnixMilli()
	}

	out := &domain.AggregateResult{
		Prices:    prices,
		Timestamp: ts,
		Sources:   domain.SourceCounts{Binance: binanceCount, Gold: 1},
		Status:    res.Outcome,
	}
	switch res.Outcome {
	case domain.OutcomeStale:
		out.Warning = warnStale
	case domain.OutcomeEmpty:
		out.Warning = warnEmpty
	}

	span.SetAttributes(
		attribute.Int("prices.binance", binanceCount),
		attribute.String("outcome", string(res.Outcome)),
	)
	return out
}

// GetPrice returns one symbol out of the merged map.
func (a *Aggregator) GetPrice(ctx context.Context, symbol string) (domain.PriceRecord, *domain.AggregateResult, bool) {
	all := a.GetAllPrices(ctx)
	rec, ok := all.Prices[symbol]
	return rec, all, ok
}

// fetch bounds the source call by the aggregate timeout; a late source
// counts as empty.
func (a *Aggregator) fetch(ctx context.Context) domain.PriceResult {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ch := make(chan domain.PriceResult, 1)
	go func() {
		ch <- a.source.GetAll(ctx)
	}()

	select {
	case res := <-ch:
		if res.Data == nil {
			res.Data = map[string]domain.PriceRecord{}
		}
		if res.Outcome == "" {
			res.Outcome = domain.OutcomeEmpty
		}
		return res
	case <-ctx.Done():
		a.logger.Warn("price source timed out", slog.Duration("timeout", a.timeout))
		return domain.PriceResult{
			Data:    map[string]domain.PriceRecord{},
			Outcome: domain.OutcomeEmpty,
			Err:     ctx.Err(),
		}
	}
}
