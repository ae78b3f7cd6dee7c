package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// sessionKey is the echo context key holding the authenticated session id.
const sessionKey = "session_id"

// SessionAuth validates the Bearer session token and stores its session id
// in the context.  Requests without a valid token are answered with 401
// and reason session_expired so clients can start a new session.
func SessionAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			id, err := utils.ParseSessionToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return unauthorized(c, "invalid or expired session token")
			}
			c.Set(sessionKey, id)
			return next(c)
		}
	}
}

// SessionID returns the session id set by SessionAuth, or "" when the
// request is not authenticated.
func SessionID(c echo.Context) string {
	if s, ok := c.Get(sessionKey).(string); ok {
		return s
	}
	return ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"reason":  reservation.ReasonSessionExpired,
		"message": msg,
	})
}
