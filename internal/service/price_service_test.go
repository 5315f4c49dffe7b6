package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"pricefeed/internal/domain"
	"pricefeed/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestPriceService_MissThenHit(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(50000)}}}
	limiter := &stubLimiter{allow: true}
	svc, _ := newTestService(fetcher, limiter)

	first := svc.GetAll(context.Background())
	if first.Outcome != domain.OutcomeFresh || first.FromCache {
		t.Fatalf("expected fresh fetch, got %+v", first)
	}

	second := svc.GetAll(context.Background())
	if !second.FromCache || second.Outcome != domain.OutcomeFresh {
		t.Fatalf("expected cache hit, got %+v", second)
	}
	if second.Timestamp != first.Timestamp {
		t.Fatalf("cache hit should keep timestamp %d, got %d", first.Timestamp, second.Timestamp)
	}
	if fetcher.callCount() != 1 || limiter.recorded != 1 {
		t.Fatalf("expected one upstream call, got fetch=%d recorded=%d", fetcher.callCount(), limiter.recorded)
	}
}

func TestPriceService_RefetchesAfterTTL(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(1)}, {data: btcOnly(2)}}}
	svc, clock := newTestService(fetcher, &stubLimiter{allow: true})

	svc.GetAll(context.Background())
	clock.Advance(5 * time.Second)

	res := svc.GetAll(context.Background())
	if res.FromCache || res.Data["BTCUSDT"].Price != 2 {
		t.Fatalf("expected refetch after TTL, got %+v", res)
	}
}

func TestPriceService_TimeoutServesPriorMap(t *testing.T) {
	t.Parallel()

	timeoutErr := errors.Join(provider.ErrTimeout, context.DeadlineExceeded)
	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(50000)}, {err: timeoutErr}}}
	svc, clock := newTestService(fetcher, &stubLimiter{allow: true})

	first := svc.GetAll(context.Background())
	clock.Advance(10 * time.Second)
	second := svc.GetAll(context.Background())

	if second.Outcome != domain.OutcomeStale {
		t.Fatalf("expected stale outcome, got %s", second.Outcome)
	}
	if !errors.Is(second.Err, provider.ErrTimeout) {
		t.Fatalf("expected timeout cause, got %v", second.Err)
	}
	if reflect.ValueOf(second.Data).Pointer() != reflect.ValueOf(first.Data).Pointer() {
		t.Fatal("stale answer should be the cached map itself")
	}
	if !reflect.DeepEqual(second.Data, first.Data) || second.Timestamp != first.Timestamp {
		t.Fatal("cached data changed")
	}
}

func TestPriceService_ErrorWithoutCacheIsEmpty(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{results: []fetchResult{{err: provider.ErrNetwork}}}
	svc, _ := newTestService(fetcher, &stubLimiter{allow: true})

	res := svc.GetAll(context.Background())
	if res.Outcome != domain.OutcomeEmpty {
		t.Fatalf("expected empty outcome, got %s", res.Outcome)
	}
	if res.Data == nil || len(res.Data) != 0 {
		t.Fatalf("expected empty non-nil map, got %+v", res.Data)
	}
}

func TestPriceService_EmptyFetchKeepsPriorEntry(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{results: []fetchResult{
		{data: map[string]domain.PriceRecord{}},
		{data: btcOnly(3)},
		{data: map[string]domain.PriceRecord{}},
	}}
	svc, clock := newTestService(fetcher, &stubLimiter{allow: true})

	if res := svc.GetAll(context.Background()); res.Outcome != domain.OutcomeEmpty || res.Err != nil {
		t.Fatalf("expected clean empty result, got %+v", res)
	}

	clock.Advance(6 * time.Second)
	svc.GetAll(context.Background())

	clock.Advance(6 * time.Second)
	res := svc.GetAll(context.Background())
	if res.Outcome != domain.OutcomeStale || res.Data["BTCUSDT"].Price != 3 {
		t.Fatalf("expected stale BTC at 3, got %+v", res)
	}
}

func TestPriceService_RateLimitedServesCache(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(7)}}}
	limiter := &stubLimiter{allow: true}
	svc, clock := newTestService(fetcher, limiter)

	svc.GetAll(context.Background())
	limiter.allow = false
	clock.Advance(time.Minute)

	res := svc.GetAll(context.Background())
	if res.Outcome != domain.OutcomeStale || !errors.Is(res.Err, ErrRateLimited) {
		t.Fatalf("expected rate limited stale answer, got %+v", res)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("no upstream call expected while limited, got %d", fetcher.callCount())
	}
}

func TestPriceService_RateLimitedWithoutCacheBacksOff(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(9)}}}
	limiter := &stubLimiter{allow: false}
	svc, _ := newTestService(fetcher, limiter)

	var slept []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	res := svc.GetAll(context.Background())
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected a single 1s backoff, got %v", slept)
	}
	if res.Outcome != domain.OutcomeFresh || fetcher.callCount() != 1 {
		t.Fatalf("expected best-effort fetch after backoff, got %+v", res)
	}
}

func TestPriceService_MirrorFallbackOnColdStart(t *testing.T) {
	t.Parallel()

	mirror := &mockMirror{loaded: &domain.CacheEntry{Data: btcOnly(11), Timestamp: 5}}
	fetcher := &mockFetcher{results: []fetchResult{{err: provider.ErrNetwork}}}
	svc, _ := newTestService(fetcher, &stubLimiter{allow: true}, WithSnapshotMirror(mirror))

	res := svc.GetAll(context.Background())
	if res.Outcome != domain.OutcomeStale || res.Data["BTCUSDT"].Price != 11 {
		t.Fatalf("expected mirrored snapshot, got %+v", res)
	}

	// The mirrored entry is adopted, so the next failure does not need Redis.
	mirror.loaded = nil
	res = svc.GetAll(context.Background())
	if res.Outcome != domain.OutcomeStale || res.Timestamp != 5 {
		t.Fatalf("expected adopted snapshot, got %+v", res)
	}
}

func TestPriceService_PublishesFreshEntries(t *testing.T) {
	t.Parallel()

	mirror := &mockMirror{}
	sink := &mockSink{accept: true}
	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(1)}}}
	svc, _ := newTestService(fetcher, &stubLimiter{allow: true}, WithSnapshotMirror(mirror), WithSnapshotSink(sink))

	svc.GetAll(context.Background())
	svc.GetAll(context.Background())

	waitFor(t, func() bool { return mirror.saveCount() == 1 })
	if len(sink.entries) != 1 {
		t.Fatalf("expected one queued snapshot, got %d", len(sink.entries))
	}
}

func TestPriceService_SlowMirrorDoesNotDelayReaders(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	mirror := &mockMirror{block: release}
	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(1)}}}
	svc, _ := newTestService(fetcher, &stubLimiter{allow: true}, WithSnapshotMirror(mirror))

	done := make(chan domain.PriceResult, 1)
	go func() { done <- svc.GetAll(context.Background()) }()

	select {
	case res := <-done:
		if res.Outcome != domain.OutcomeFresh {
			t.Fatalf("expected fresh result, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("GetAll waited on the mirror write")
	}

	close(release)
	waitFor(t, func() bool { return mirror.saveCount() == 1 })
}

func TestPriceService_MirrorErrorsDoNotFail(t *testing.T) {
	t.Parallel()

	mirror := &mockMirror{saveErr: errors.New("redis down"), loadErr: errors.New("redis down")}
	fetcher := &mockFetcher{results: []fetchResult{{err: provider.ErrTimeout}}}
	svc, _ := newTestService(fetcher, &stubLimiter{allow: true}, WithSnapshotMirror(mirror), WithSnapshotSink(&mockSink{}))

	if res := svc.GetAll(context.Background()); res.Outcome != domain.OutcomeEmpty {
		t.Fatalf("expected empty outcome, got %+v", res)
	}
}

func TestPriceService_ConcurrentMissesShareOneFetch(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(1)}}, block: release}
	limiter := &stubLimiter{allow: true}
	svc := NewPriceService(testTracer, fetcher, limiter)

	var wg sync.WaitGroup
	results := make([]domain.PriceResult, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetAll(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if fetcher.callCount() != 1 {
		t.Fatalf("expected one upstream call, got %d", fetcher.callCount())
	}
	for i, res := range results {
		if res.Data["BTCUSDT"].Price != 1 {
			t.Fatalf("caller %d got %+v", i, res)
		}
	}
}

func TestPriceService_CallerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	fetcher := &mockFetcher{results: []fetchResult{{data: btcOnly(1)}}, block: release}
	svc := NewPriceService(testTracer, fetcher, &stubLimiter{allow: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := svc.GetAll(ctx)
	if res.Outcome != domain.OutcomeEmpty || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected empty result on cancellation, got %+v", res)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep should return nil, got %v", err)
	}
}

func btcOnly(price float64) map[string]domain.PriceRecord {
	return map[string]domain.PriceRecord{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: price, Source: domain.SourceBinance},
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(fetcher TickerFetcher, limiter CallLimiter, opts ...PriceServiceOption) (*PriceService, *testClock) {
	clock := &testClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := NewPriceService(testTracer, fetcher, limiter, opts...)
	svc.now = clock.Now
	return svc, clock
}

type fetchResult struct {
	data map[string]domain.PriceRecord
	err  error
}

type mockFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	block   chan struct{}
}

func (m *mockFetcher) FetchAll(ctx context.Context) (map[string]domain.PriceRecord, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	r := m.results[idx]
	return r.data, r.err
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type stubLimiter struct {
	allow    bool
	recorded int
}

func (s *stubLimiter) CanMakeCall() bool { return s.allow }

func (s *stubLimiter) RecordCall() { s.recorded++ }

type mockMirror struct {
	mu      sync.Mutex
	loaded  *domain.CacheEntry
	saves   int
	saveErr error
	loadErr error
	block   chan struct{}
}

func (m *mockMirror) Save(ctx context.Context, entry *domain.CacheEntry) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return m.saveErr
}

func (m *mockMirror) Load(ctx context.Context) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.loaded, nil
}

func (m *mockMirror) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

type mockSink struct {
	accept  bool
	entries []*domain.CacheEntry
}

func (m *mockSink) Enqueue(entry *domain.CacheEntry) bool {
	if !m.accept {
		return false
	}
	m.entries = append(m.entries, entry)
	return true
}
