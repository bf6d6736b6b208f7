package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, APIError{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(ctx),
		Details:   details,
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, string(apperr.KindInvalidInput), message, details)
}

func RespondInternal(ctx *gin.Context) {
	RespondError(ctx, http.StatusInternalServerError, string(apperr.KindInternal), "Server error", nil)
}

// RespondAppError maps a service error onto the wire. Only the typed message
// is sent; causes stay in the log.
func RespondAppError(ctx *gin.Context, log *slog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		log.ErrorContext(ctx.Request.Context(), "untyped error reached handler",
			"err", err,
			"request_id", requestIDFrom(ctx),
		)
		RespondInternal(ctx)
		return
	}

	if e.Kind == apperr.KindInternal {
		RespondInternal(ctx)
		return
	}

	RespondError(ctx, e.HTTPStatus(), string(e.Kind), e.Message, nil)
}
