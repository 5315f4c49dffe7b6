package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"pricefeed/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	binanceBaseURL    = "https://api.binance.com"
	binanceTickerPath = "/api/v3/ticker/24hr"

	defaultFetchTimeout = 8 * time.Second
	defaultQuoteSuffix  = "USDT"
	defaultMaxTickers   = 200
)

var (
	// ErrTimeout means the upstream did not answer before the fetch deadline.
	ErrTimeout = errors.New("upstream timeout")
	// ErrInvalidResponse means the upstream payload was not a ticker list.
	ErrInvalidResponse = errors.New("invalid upstream response")
	// ErrNetwork covers transport failures and non-200 statuses.
	ErrNetwork = errors.New("upstream network error")
)

var hundred = decimal.NewFromInt(100)

// BinanceProvider fetches 24h ticker statistics from the Binance public REST API.
type BinanceProvider struct {
	client      *http.Client
	baseURL     string
	tracer      trace.Tracer
	logger      *slog.Logger
	timeout     time.Duration
	quoteSuffix string
	maxTickers  int
	now         func() time.Time
}

// BinanceOption configures a BinanceProvider.
type BinanceOption func(*BinanceProvider)

// WithBaseURL points the provider at a different API host.
func WithBaseURL(url string) BinanceOption {
	return func(p *BinanceProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) BinanceOption {
	return func(p *BinanceProvider) {
		p.client = hc
	}
}

// WithFetchTimeout sets the hard deadline for one ticker request.
func WithFetchTimeout(d time.Duration) BinanceOption {
	return func(p *BinanceProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithQuoteSuffix keeps only symbols quoted in the given asset.
func WithQuoteSuffix(suffix string) BinanceOption {
	return func(p *BinanceProvider) {
		if suffix != "" {
			p.quoteSuffix = strings.ToUpper(suffix)
		}
	}
}

// WithMaxTickers caps how many matching tickers are processed per fetch.
func WithMaxTickers(n int) BinanceOption {
	return func(p *BinanceProvider) {
		if n > 0 {
			p.maxTickers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BinanceOption {
	return func(p *BinanceProvider) {
		p.logger = logger
	}
}

// NewBinanceProvider creates a provider with Binance defaults: 8s timeout,
// USDT pairs, at most 200 tickers.
func NewBinanceProvider(tracer trace.Tracer, opts ...BinanceOption) *BinanceProvider {
	p := &BinanceProvider{
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     binanceBaseURL,
		tracer:      tracer,
		logger:      slog.Default(),
		timeout:     defaultFetchTimeout,
		quoteSuffix: defaultQuoteSuffix,
		maxTickers:  defaultMaxTickers,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type tickerSymbol struct {
	Symbol string `json:"symbol"`
}

// binanceTicker is one element of the /ticker/24hr array. Numerics are strings.
type binanceTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	OpenPrice string `json:"openPrice"`
	Volume    string `json:"volume"`
	HighPrice string `json:"highPrice"`
	LowPrice  string `json:"lowPrice"`
}

// FetchAll fetches every ticker and returns the valid quote-suffixed ones keyed
// by symbol. An upstream list with no usable entries yields an empty map and
// a nil error.
func (p *BinanceProvider) FetchAll(ctx context.Context) (map[string]domain.PriceRecord, error) {
	ctx, span := p.tracer.Start(ctx, "binance.fetch-all")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := p.doRequest(ctx, p.baseURL+binanceTickerPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch tickers")
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		span.SetStatus(codes.Error, "decode tickers")
		return nil, fmt.Errorf("decode tickers: %w: %w", ErrInvalidResponse, err)
	}

	result := p.normalize(entries)
	span.SetAttributes(
		attribute.Int("tickers.received", len(entries)),
		attribute.Int("tickers.kept", len(result)),
	)
	if len(result) == 0 {
		p.logger.Warn("binance returned no usable tickers", slog.Int("received", len(entries)))
	}
	return result, nil
}

func (p *BinanceProvider) normalize(entries []json.RawMessage) map[string]domain.PriceRecord {
	now := p.now().UnixMilli()
	result := make(map[string]domain.PriceRecord)

	matched, skipped := 0, 0
	for _, raw := range entries {
		if matched >= p.maxTickers {
			break
		}
		// The symbol alone decides whether an entry counts toward the cap.
		var head tickerSymbol
		if err := json.Unmarshal(raw, &head); err != nil {
			skipped++
			continue
		}
		if !strings.HasSuffix(head.Symbol, p.quoteSuffix) {
			continue
		}
		matched++

		var t binanceTicker
		if err := json.Unmarshal(raw, &t); err != nil {
			skipped++
			continue
		}
		rec, ok := toPriceRecord(t, now)
		if !ok {
			skipped++
			continue
		}
		result[rec.Symbol] = rec
	}

	if skipped > 0 {
		p.logger.Debug("skipped invalid tickers", slog.Int("skipped", skipped))
	}
	return result
}

// toPriceRecord converts one ticker, rejecting it when the last or open price
// is not a number or the last price is not positive.
func toPriceRecord(t binanceTicker, nowMs int64) (domain.PriceRecord, bool) {
	price, err := decimal.NewFromString(strings.TrimSpace(t.LastPrice))
	if err != nil || !price.IsPositive() {
		return domain.PriceRecord{}, false
	}
	open, err := decimal.NewFromString(strings.TrimSpace(t.OpenPrice))
	if err != nil {
		return domain.PriceRecord{}, false
	}

	change := price.Sub(open)
	pct := decimal.Zero
	if open.IsPositive() {
		pct = change.Div(open).Mul(hundred)
	}

	return domain.PriceRecord{
		Symbol:                t.Symbol,
		Price:                 price.InexactFloat64(),
		PriceChange24h:        change.InexactFloat64(),
		PriceChangePercent24h: pct.InexactFloat64(),
		Volume24h:             parseLenient(t.Volume),
		High24h:               parseLenient(t.HighPrice),
		Low24h:                parseLenient(t.LowPrice),
		Timestamp:             nowMs,
		Source:                domain.SourceBinance,
	}, true
}

func parseLenient(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func (p *BinanceProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: binance API error %d: %s", ErrNetwork, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	return body, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
