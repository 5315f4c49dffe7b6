package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const statusHealthy = "healthy"

// Health godoc
// @Summary      Liveness probe
// @Description  Reports that the process is serving. Upstream or storage outages show up in /api/prices status, not here.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.health")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"status": statusHealthy})
}
