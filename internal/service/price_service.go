package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pricefeed/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	// tickerCacheKey names the one process-wide cache slot.
	tickerCacheKey = "binance:tickers:all"

	DefaultCacheTTL = 5 * time.Second
	DefaultBackoff  = time.Second

	mirrorWriteTimeout = 2 * time.Second
)

// ErrRateLimited is reported when the call budget forced a cached answer.
var ErrRateLimited = errors.New("upstream call budget exhausted")

type TickerFetcher interface {
	FetchAll(ctx context.Context) (map[string]domain.PriceRecord, error)
}

type CallLimiter interface {
	CanMakeCall() bool
	RecordCall()
}

// SnapshotMirror persists the last good entry outside the process.
type SnapshotMirror interface {
	Save(ctx context.Context, entry *domain.CacheEntry) error
	Load(ctx context.Context) (*domain.CacheEntry, error)
}

// SnapshotSink receives every freshly fetched entry. Enqueue must not block.
type SnapshotSink interface {
	Enqueue(entry *domain.CacheEntry) bool
}

// PriceService wraps the ticker fetcher with a short-TTL cache and falls back
// to stale or empty data instead of returning errors.
type PriceService struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	fetcher TickerFetcher
	limiter CallLimiter
	mirror  SnapshotMirror
	sink    SnapshotSink

	ttl     time.Duration
	backoff time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	entry *domain.CacheEntry
	group singleflight.Group
}

type PriceServiceOption func(*PriceService)

func WithCacheTTL(ttl time.Duration) PriceServiceOption {
	return func(s *PriceService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBackoff sets how long to wait when the budget is spent and nothing is cached.
func WithBackoff(d time.Duration) PriceServiceOption {
	return func(s *PriceService) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

func WithSnapshotMirror(m SnapshotMirror) PriceServiceOption {
	return func(s *PriceService) {
		s.mirror = m
	}
}

func WithSnapshotSink(sink SnapshotSink) PriceServiceOption {
	return func(s *PriceService) {
		s.sink = sink
	}
}

func WithServiceLogger(logger *slog.Logger) PriceServiceOption {
	return func(s *PriceService) {
		s.logger = logger
	}
}

func NewPriceService(tracer trace.Tracer, fetcher TickerFetcher, limiter CallLimiter, opts ...PriceServiceOption) *PriceService {
	s := &PriceService{
		tracer:  tracer,
		logger:  slog.Default(),
		fetcher: fetcher,
		limiter: limiter,
		ttl:     DefaultCacheTTL,
		backoff: DefaultBackoff,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAll returns every cached or freshly fetched ticker. It never fails:
// fetch errors degrade to the last good entry, or to an empty map.
func (s *PriceService) GetAll(ctx context.Context) domain.PriceResult {
	ctx, span := s.tracer.Start(ctx, "price-service.get-all")
	defer span.End()

	if res, ok := s.fresh(); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return res
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// Concurrent misses share one upstream call. The flight runs detached from
	// any single caller; the fetcher's own deadline bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(tickerCacheKey, func() (interface{}, error) {
		return s.refresh(flightCtx), nil
	})

	select {
	case r := <-ch:
		res := r.Val.(domain.PriceResult)
		span.SetAttributes(
			attribute.String("outcome", string(res.Outcome)),
			attribute.Bool("shared", r.Shared),
		)
		return res
	case <-ctx.Done():
		return s.staleOrEmpty(flightCtx, ctx.Err())
	}
}

func (s *PriceService) refresh(ctx context.Context) domain.PriceResult {
	if res, ok := s.fresh(); ok {
		return res
	}

	if !s.limiter.CanMakeCall() {
		if entry := s.current(); entry != nil {
			s.logger.Warn("call budget exhausted, serving cached prices")
			return staleResult(entry, ErrRateLimited)
		}
		s.logger.Warn("call budget exhausted with empty cache, backing off",
			slog.Duration("backoff", s.backoff))
		if err := s.sleep(ctx, s.backoff); err != nil {
			return s.staleOrEmpty(ctx, err)
		}
	}

	s.limiter.RecordCall()
	data, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		s.logger.Warn("ticker fetch failed", slog.Any("err", err))
		return s.staleOrEmpty(ctx, err)
	}
	if len(data) == 0 {
		return s.staleOrEmpty(ctx, nil)
	}

	entry := &domain.CacheEntry{Data: data, Timestamp: s.now().UnixMilli()}
	s.mu.Lock()
	s.entry = entry
	s.mu.Unlock()
	s.publish(ctx, entry)

	return domain.PriceResult{
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
		Outcome:   domain.OutcomeFresh,
	}
}

func (s *PriceService) publish(ctx context.Context, entry *domain.CacheEntry) {
	if s.mirror != nil {
		go s.saveMirror(context.WithoutCancel(ctx), entry)
	}
	if s.sink != nil && !s.sink.Enqueue(entry) {
		s.logger.Warn("history queue full, snapshot dropped", slog.Int("records", len(entry.Data)))
	}
}

// saveMirror runs off the read path; callers never wait on Redis.
func (s *PriceService) saveMirror(ctx context.Context, entry *domain.CacheEntry) {
	ctx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()
	if err := s.mirror.Save(ctx, entry); err != nil {
		s.logger.Warn("snapshot mirror write failed", slog.Any("err", err))
	}
}

// staleOrEmpty serves the in-memory entry, then the mirror, then nothing.
func (s *PriceService) staleOrEmpty(ctx context.Context, cause error) domain.PriceResult {
	if entry := s.current(); entry != nil {
		return staleResult(entry, cause)
	}

	if s.mirror != nil {
		entry, err := s.mirror.Load(ctx)
		if err != nil {
			s.logger.Warn("snapshot mirror read failed", slog.Any("err", err))
		} else if entry != nil {
			s.mu.Lock()
			if s.entry == nil {
				s.entry = entry
			}
			s.mu.Unlock()
			return staleResult(entry, cause)
		}
	}

	return domain.PriceResult{
		Data:      map[string]domain.PriceRecord{},
		Timestamp: s.now().UnixMilli(),
		Outcome:   domain.OutcomeEmpty,
		Err:       cause,
	}
}

func (s *PriceService) fresh() (domain.PriceResult, bool) {
	entry := s.current()
	if entry == nil || entry.Age(s.now()) >= s.ttl {
		return domain.PriceResult{}, false
	}
	return domain.PriceResult{
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
		Outcome:   domain.OutcomeFresh,
		FromCache: true,
	}, true
}

func (s *PriceService) current() *domain.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry
}

func staleResult(entry *domain.CacheEntry, cause error) domain.PriceResult {
	return domain.PriceResult{
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
		Outcome:   domain.OutcomeStale,
		FromCache: true,
		Err:       cause,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
