package handler

import (
	"context"
	"net/http"

	"pricefeed/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// PriceReader is the aggregated read path the handlers serve from.
type PriceReader interface {
	GetAllPrices(ctx context.Context) *domain.AggregateResult
	GetPrice(ctx context.Context, symbol string) (domain.PriceRecord, *domain.AggregateResult, bool)
}

type HistoryReader interface {
	GetHistory(ctx context.Context, symbol string, limit int) ([]domain.PriceRecord, error)
}

type Handler struct {
	tracer  trace.Tracer
	prices  PriceReader
	history HistoryReader
	stream  http.Handler
}

// New builds the HTTP handlers. history and stream may be nil when
// persistence or the websocket feed are disabled.
func New(tracer trace.Tracer, prices PriceReader, history HistoryReader, stream http.Handler) *Handler {
	return &Handler{
		tracer:  tracer,
		prices:  prices,
		history: history,
		stream:  stream,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/prices", h.GetAllPrices)
	api.GET("/prices/:symbol", h.GetPrice)
	api.GET("/history/:symbol", h.GetHistory)

	if h.stream != nil {
		r.GET("/ws/prices", gin.WrapH(h.stream))
	}
}
