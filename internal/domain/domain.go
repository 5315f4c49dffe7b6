package domain

// Source identifies where a price record came from.
type Source string

const (
	SourceBinance  Source = "binance"
	SourceFallback Source = "fallback"
)

// Outcome classifies how healthy a price answer is.
type Outcome string

const (
	OutcomeFresh Outcome = "fresh"
	OutcomeStale Outcome = "stale"
	OutcomeEmpty Outcome = "empty"
)

// Symbols with a fixed synthetic price rather than a live feed.
const (
	GoldSymbol = "GOLD"
	// GoldPriceUSD approximates spot gold per ounce.
	GoldPriceUSD = 2050.0
)

// PriceResult is the cache-and-fallback layer's answer. Data is never nil and
// must be treated as read-only: it may be the shared cache map.
type PriceResult struct {
	Data      map[string]PriceRecord
	Timestamp int64
	Outcome   Outcome
	FromCache bool
	// Err is the fetch error that forced a stale or empty answer, if any.
	Err error
}

// SourceCounts reports how many entries each source contributed.
type SourceCounts struct {
	Binance int `json:"binance"`
	Gold    int `json:"gold"`
}

// AggregateResult is the merged price map served to consumers.
type AggregateResult struct {
	Prices    map[string]PriceRecord `json:"prices"`
	Timestamp int64                  `json:"timestamp"`
	Sources   SourceCounts           `json:"sources"`
	Status    Outcome                `json:"status"`
	Warning   string                 `json:"warning,omitempty"`
}

// Filter returns a copy of r narrowed to the given symbols. GOLD is always kept.
func (r *AggregateResult) Filter(symbols []string) *AggregateResult {
	if len(symbols) == 0 {
		return r
	}
	out := *r
	out.Prices = make(map[string]PriceRecord, len(symbols)+1)
	out.Sources = SourceCounts{}
	want := make(map[string]struct{}, len(symbols)+1)
	for _, s := range symbols {
		want[s] = struct{}{}
	}
	want[GoldSymbol] = struct{}{}
	for sym, rec := range r.Prices {
		if _, ok := want[sym]; !ok {
			continue
		}
		out.Prices[sym] = rec
		if rec.Source == SourceBinance {
			out.Sources.Binance++
		} else {
			out.Sources.Gold++
		}
	}
	return &out
}
