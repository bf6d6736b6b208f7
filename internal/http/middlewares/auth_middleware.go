package middlewares

import (
	"log/slog"
	"strings"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type AuthMiddleware struct {
	jwt  TokenVerifier
	log  *slog.Logger
	prom *observability.Prom
}

func NewAuthMiddleware(jwt TokenVerifier, log *slog.Logger, prom *observability.Prom) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{jwt: jwt, log: log, prom: prom}
}

const bearerPrefix = "Bearer "

var (
	errNoToken      = apperr.Unauthenticated("No token, authorization denied")
	errInvalidToken = apperr.Unauthenticated("Token is not valid")
)

// RequireAuth resolves the bearer token to a user id and binds it to the
// request. Nothing downstream runs unless that succeeds.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		raw := ""
		if strings.HasPrefix(authHeader, bearerPrefix) {
			raw = strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		}

		if raw == "" {
			m.prom.ObserveAuth("gate", "missing_token")
			abortWithAppError(c, errNoToken)
			return
		}

		userID, err := m.jwt.Verify(raw)
		if err != nil {
			m.prom.ObserveAuth("gate", "invalid_token")
			m.log.DebugContext(c.Request.Context(), "token rejected", "path", c.Request.URL.Path)
			abortWithAppError(c, errInvalidToken)
			return
		}

		m.prom.ObserveAuth("gate", "ok")

		c.Set(CtxUserID, userID)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

// UserIDFromContext saves handlers from knowing the magic key.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func abortWithAppError(c *gin.Context, e *apperr.Error) {
	AbortWithError(c, e.HTTPStatus(), string(e.Kind), e.Message)
}

// AbortWithError writes the standard error body and stops the chain.
func AbortWithError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}

	if id, ok := c.Get(CtxRequestID); ok {
		if s, ok := id.(string); ok && s != "" {
			body["requestId"] = s
		}
	}

	c.AbortWithStatusJSON(status, body)
}
