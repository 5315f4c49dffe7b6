package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth guards the /api group. An empty key disables the check.
func APIKeyAuth(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(key)
	return func(c *gin.Context) {
		provided := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		switch {
		case provided == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + apiKeyHeader + " header"})
		case subtle.ConstantTimeCompare([]byte(provided), want) != 1:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid API key"})
		default:
			c.Next()
		}
	}
}
