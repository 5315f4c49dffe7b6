package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetAllPrices godoc
// @Summary      Get current prices for all tracked assets
// @Description  Returns every USDT-quoted Binance ticker plus the GOLD reference price. Always 200; status and warning report degraded data.
// @Tags         prices
// @Produce      json
// @Param        symbols  query  string  false  "Comma-separated symbols to keep (e.g., BTCUSDT,ETHUSDT). GOLD is always included."
// @Success      200  {object}  domain.AggregateResult
// @Router       /api/prices [get]
func (h *Handler) GetAllPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-all-prices")
	defer span.End()

	result := h.prices.GetAllPrices(ctx)
	symbols := parseSymbols(c.Query("symbols"))
	if len(symbols) > 0 {
		result = result.Filter(symbols)
	}
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Int("prices", len(result.Prices)),
	)

	c.JSON(http.StatusOK, result)
}

// GetPrice godoc
// @Summary      Get current price for one asset
// @Description  Returns a single price record from the latest aggregate
// @Tags         prices
// @Produce      json
// @Param        symbol  path  string  true  "Symbol (e.g., BTCUSDT, GOLD)"
// @Success      200  {object}  domain.PriceRecord
// @Failure      404  {object}  map[string]string
// @Router       /api/prices/{symbol} [get]
func (h *Handler) GetPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-price")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	span.SetAttributes(attribute.String("symbol", symbol))

	record, result, ok := h.prices.GetPrice(ctx, symbol)
	if !ok {
		body := gin.H{"error": "unknown symbol: " + symbol, "status": result.Status}
		if result.Warning != "" {
			body["warning"] = result.Warning
		}
		c.JSON(http.StatusNotFound, body)
		return
	}

	c.JSON(http.StatusOK, record)
}

func parseSymbols(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
