// Package handler exposes the HTTP handlers of the seat server.  Failed
// requests answer {success:false, reason, message}; the reason codes are
// the ones defined by the reservation package.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/catalog"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/seatstore"
)

// Validator adapts validator/v10 to echo's Validator interface.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator { return &Validator{v: validator.New()} }

func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

// fail writes a failure body with the status the reason maps to.
func fail(c echo.Context, reason, message string) error {
	return c.JSON(reservation.StatusFor(reason), reservation.Response{
		Success: false,
		Reason:  reason,
		Message: message,
	})
}

// failAt is fail for seat mutations, stamped with the store version at the
// time of the failure.
func failAt(c echo.Context, reason, message string, stamp int64) error {
	return c.JSON(reservation.StatusFor(reason), reservation.Response{
		Success:   false,
		Reason:    reason,
		Message:   message,
		Timestamp: stamp,
	})
}

// reasonFor maps store and repository errors to wire reasons.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, seatstore.ErrInvalidTrip), errors.Is(err, catalog.ErrTripNotFound):
		return reservation.ReasonInvalidTrip
	case errors.Is(err, catalog.ErrRouteNotFound):
		return reservation.ReasonInvalidRoute
	case errors.Is(err, seatstore.ErrInvalidSeat):
		return reservation.ReasonInvalidSeat
	case errors.Is(err, seatstore.ErrSeatUnavailable), errors.Is(err, repository.ErrConflict):
		return reservation.ReasonSeatUnavailable
	case errors.Is(err, seatstore.ErrSeatNoLongerHeld):
		return reservation.ReasonSeatNoLongerHeld
	case errors.Is(err, repository.ErrNotFound):
		return reservation.ReasonBookingNotFound
	}
	return reservation.ReasonInternal
}

func messageFor(reason string) string {
	switch reason {
	case reservation.ReasonInvalidTrip:
		return "trip not found"
	case reservation.ReasonInvalidRoute:
		return "route not found"
	case reservation.ReasonInvalidSeat:
		return "seat does not exist on this trip"
	case reservation.ReasonSeatUnavailable:
		return "seat is not available"
	case reservation.ReasonSeatNoLongerHeld:
		return "seat is no longer held by this session"
	case reservation.ReasonBookingNotFound:
		return "booking not found"
	}
	return http.StatusText(reservation.StatusFor(reason))
}
