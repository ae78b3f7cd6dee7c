package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
)

// Booking handles GET /api/bookings/:booking_id.  A session only sees its
// own bookings; anything else answers booking_not_found so ids cannot be
// probed.  The national id is never returned.
func (h *SeatHandler) Booking(c echo.Context) error {
	id := strings.TrimSpace(c.Param("booking_id"))
	if h.Reader == nil || id == "" {
		return fail(c, reservation.ReasonBookingNotFound, messageFor(reservation.ReasonBookingNotFound))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Reader.GetByID(ctx, id)
	if err != nil {
		reason := reasonFor(err)
		if reason == reservation.ReasonInternal {
			h.Log.Error("load booking", zap.String("booking_id", id), zap.Error(err))
		}
		return fail(c, reason, messageFor(reason))
	}
	if b.SessionID != middleware.SessionID(c) {
		return fail(c, reservation.ReasonBookingNotFound, messageFor(reservation.ReasonBookingNotFound))
	}
	b.Customer.NationalID = ""
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}
