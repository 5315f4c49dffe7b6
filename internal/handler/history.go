package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// GetHistory godoc
// @Summary      Get persisted price history
// @Description  Returns the most recent stored snapshots for a symbol, newest first
// @Tags         history
// @Produce      json
// @Param        symbol  path   string  true   "Symbol (e.g., BTCUSDT)"
// @Param        limit   query  int     false  "Number of rows (default 100, max 1000)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/history/{symbol} [get]
func (h *Handler) GetHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-history")
	defer span.End()

	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price history is not configured"})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	span.SetAttributes(attribute.String("symbol", symbol))

	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxHistoryLimit {
			limit = n
		}
	}

	records, err := h.history.GetHistory(ctx, symbol, limit)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"history": records,
	})
}
