package middleware

import (
	"net/http"

	"teamhub/services"

	"github.com/gin-gonic/gin"
)

// CSRFMiddleware требует одноразовый X-CSRF-Token для state-changing
// запросов. Токен выдает GET /api/csrf-token и сжигается при проверке.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			c.Abort()
			return
		}

		token := c.GetHeader("X-CSRF-Token")
		if !services.ValidateCSRFToken(c.Request.Context(), userID.(int64), token) {
			c.JSON(http.StatusForbidden, gin.H{"message": "Invalid or missing CSRF token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
