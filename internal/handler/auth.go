package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIKeyHeader carries the shared secret on every API request
const APIKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests without a configured key. With no keys
// configured every request passes.
func APIKeyAuth(keys []string) gin.HandlerFunc {
	if len(keys) == 0 {
		logrus.Warn("No API keys configured, the API is unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(APIKeyHeader))
		for _, k := range keys {
			if subtle.ConstantTimeCompare(got, []byte(k)) == 1 {
				c.Next()
				return
			}
		}
		abort(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid API key")
	}
}
