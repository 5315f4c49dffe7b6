package provider

import (
	"time"

	"pricefeed/internal/domain"
)

// GoldProvider supplies the synthetic GOLD entry. There is no live gold feed:
// the price is a configured constant and the 24h change is always zero.
type GoldProvider struct {
	price float64
	now   func() time.Time
}

// NewGoldProvider creates a provider quoting gold at price. A non-positive
// price falls back to domain.GoldPriceUSD.
func NewGoldProvider(price float64) *GoldProvider {
	if price <= 0 {
		price = domain.GoldPriceUSD
	}
	return &GoldProvider{price: price, now: time.Now}
}

// Record returns the current GOLD price record.
func (g *GoldProvider) Record() domain.PriceRecord {
	return domain.PriceRecord{
		Symbol:    domain.GoldSymbol,
		Price:     g.price,
		High24h:   g.price,
		Low24h:    g.price,
		Timestamp: g.now().UnixMilli(),
		Source:    domain.SourceFallback,
	}
}
