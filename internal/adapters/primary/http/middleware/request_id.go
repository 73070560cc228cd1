package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"apartment-valuation-service/internal/core/domain"
)

const headerRequestID = "X-Request-ID"

// RequestID echoes or mints X-Request-ID and stores it both on the gin
// context and on the request context, so services see it after the handler
// hands off c.Request.Context().
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(domain.ContextWithRequestID(c.Request.Context(), requestID))
		c.Header(headerRequestID, requestID)

		c.Next()
	}
}
