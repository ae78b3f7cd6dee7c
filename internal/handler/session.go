package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// SessionHandler issues booking session tokens.  A session id owns every
// seat hold made with its token.
type SessionHandler struct {
	Secret string
	TTL    time.Duration
	Log    *zap.Logger
}

func NewSessionHandler(secret string, ttl time.Duration, log *zap.Logger) *SessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandler{Secret: secret, TTL: ttl, Log: log}
}

// Start handles POST /api/session.
func (h *SessionHandler) Start(c echo.Context) error {
	tok, err := utils.NewSessionToken(h.Secret, h.TTL)
	if err != nil {
		h.Log.Error("sign session token", zap.Error(err))
		return fail(c, reservation.ReasonInternal, "could not start session")
	}
	return c.JSON(http.StatusCreated, reservation.SessionResponse{
		SessionID: tok.SessionID,
		Token:     tok.Token,
		ExpiresAt: tok.Exp,
	})
}
