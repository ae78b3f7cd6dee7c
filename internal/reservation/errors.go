package reservation

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure reasons reported by the seat server.  The value travels in the
// "reason" field of every failed response.
const (
	ReasonSeatUnavailable  = "seat_unavailable"
	ReasonSeatNoLongerHeld = "seat_no_longer_held"
	ReasonInvalidTrip      = "invalid_trip"
	ReasonInvalidRoute     = "invalid_route"
	ReasonInvalidSeat      = "invalid_seat"
	ReasonBookingNotFound  = "booking_not_found"
	ReasonSessionExpired   = "session_expired"
	ReasonNetworkError     = "network_error"
	ReasonValidationFailed = "validation_failed"
	ReasonRateLimited      = "rate_limited"
	ReasonInternal         = "internal_error"
)

// Error is a failed reservation operation.
type Error struct {
	Reason  string
	Message string
	Status  int // HTTP status, zero for transport failures
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "reservation: " + e.Reason
	}
	return fmt.Sprintf("reservation: %s: %s", e.Reason, e.Message)
}

// Reason returns the reason code carried by err, ReasonNetworkError for
// errors that did not come from the server and "" for nil.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonNetworkError
}

// NewStatusError builds the Error for a failed HTTP exchange.  An empty
// reason is derived from status.
func NewStatusError(status int, reason, message string) *Error {
	if reason == "" {
		reason = reasonForStatus(status)
	}
	return &Error{Reason: reason, Message: message, Status: status}
}

// StatusFor maps a reason code to the HTTP status the server answers with.
func StatusFor(reason string) int {
	switch reason {
	case ReasonSeatUnavailable, ReasonSeatNoLongerHeld:
		return http.StatusConflict
	case ReasonInvalidTrip, ReasonInvalidRoute, ReasonBookingNotFound:
		return http.StatusNotFound
	case ReasonInvalidSeat, ReasonValidationFailed:
		return http.StatusBadRequest
	case ReasonSessionExpired:
		return http.StatusUnauthorized
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// reasonForStatus guesses a reason when a response carries none, e.g. a
// proxy error page or the rate limiter's body.
func reasonForStatus(status int) string {
	switch status {
	case http.StatusConflict:
		return ReasonSeatUnavailable
	case http.StatusNotFound:
		return ReasonInvalidTrip
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ReasonValidationFailed
	case http.StatusUnauthorized, http.StatusForbidden:
		return ReasonSessionExpired
	case http.StatusTooManyRequests:
		return ReasonRateLimited
	}
	return ReasonInternal
}
