package respond

import (
	"github.com/gin-gonic/gin"

	"tcontas-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response. Client errors log at warn, server errors at error.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":    status,
		"code":      code,
		"message":   message,
		"route":     c.FullPath(),
		"method":    c.Request.Method,
		"requestId": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["userId"] = userID
	}
	if numero := c.Param("numero"); numero != "" {
		fields["processNumber"] = numero
	}
	if docID := c.Param("id"); docID != "" {
		fields["documentId"] = docID
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
