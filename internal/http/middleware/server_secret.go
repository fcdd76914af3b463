package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"freight-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

const ServerSecretHeader = "x-server-secret"

// ServerSecret guards server-to-server routes with a shared secret header.
func ServerSecret(secret string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(secret))
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "REFUND_ENDPOINT_SECRET belum dikonfigurasi",
				"request_id": GetRequestID(c),
			})
			return
		}
		got := []byte(strings.TrimSpace(c.GetHeader(ServerSecretHeader)))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			utils.LogSecurity(GetRequestID(c), "auth", "server_secret", "shared secret mismatch on "+c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
