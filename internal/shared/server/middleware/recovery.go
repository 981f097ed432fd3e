package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"tcontas-backend/internal/shared/server/respond"
	"tcontas-backend/internal/shared/telemetry"
)

// Recovery turns a panic in a handler into a 500 with the standard error body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"requestId": RequestIDFromContext(c),
				"error":     rec,
				"stack":     string(debug.Stack()),
				"route":     c.FullPath(),
				"method":    c.Request.Method,
			}
			if docID := c.Param("id"); docID != "" {
				fields["documentId"] = docID
			}
			telemetry.Error("http.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
