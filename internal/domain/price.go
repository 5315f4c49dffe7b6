package domain

import "time"

// PriceRecord is the normalized 24h ticker for one symbol.
type PriceRecord struct {
	Symbol                string  `json:"symbol"`
	Price                 float64 `json:"price"`
	PriceChange24h        float64 `json:"priceChange24h"`
	PriceChangePercent24h float64 `json:"priceChangePercent24h"`
	Volume24h             float64 `json:"volume24h"`
	High24h               float64 `json:"high24h"`
	Low24h                float64 `json:"low24h"`
	Timestamp             int64   `json:"timestamp"`
	Source                Source  `json:"source"`
}

// ObservedAt converts the millisecond timestamp to a time.Time.
func (p PriceRecord) ObservedAt() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// CacheEntry is the last successful fetch. It is replaced wholesale, never mutated.
type CacheEntry struct {
	Data      map[string]PriceRecord `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Age reports how old the entry is relative to now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

// Records returns the entry's data as a slice, in no particular order.
func (e *CacheEntry) Records() []PriceRecord {
	out := make([]PriceRecord, 0, len(e.Data))
	for _, rec := range e.Data {
		out = append(out, rec)
	}
	return out
}
