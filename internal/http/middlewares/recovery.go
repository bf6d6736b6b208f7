package middlewares

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into the generic 500 body. The panic value is logged,
// never returned.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		reqID, _ := c.Get(CtxRequestID)
		log.ErrorContext(c.Request.Context(), "panic recovered",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"request_id", reqID,
		)

		AbortWithError(c, http.StatusInternalServerError, "internal_error", "Server error")
	})
}
