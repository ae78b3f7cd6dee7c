package session

import (
	"fmt"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
)

// Kind classifies a notification shown to the user.
type Kind int

const (
	// Info is not a failure.
	Info Kind = iota
	// Contention: a seat was taken by someone else first.
	Contention
	// StaleSelection: a held seat was released by the server.
	StaleSelection
	// Conflict: a seat believed held is already booked.
	Conflict
	// Transport: the server could not be reached or the session expired.
	Transport
	// Validation: the input was rejected before or by the server.
	Validation
)

var kindNames = [...]string{"info", "contention", "stale_selection", "conflict", "transport", "validation"}

func (k Kind) String() string {
	if k < Info || k > Validation {
		return "unknown"
	}
	return kindNames[k]
}

// Notification is one human readable message.  SeatID and Reason are set
// when the message is about a seat or carries a server reason code.
type Notification struct {
	Kind    Kind
	Message string
	SeatID  model.SeatID
	Reason  string
}

// KindOf maps a reservation failure to its notification kind.
func KindOf(err error) Kind {
	switch reservation.Reason(err) {
	case "":
		return Info
	case reservation.ReasonSeatUnavailable, reservation.ReasonSeatNoLongerHeld:
		return Contention
	case reservation.ReasonInvalidTrip, reservation.ReasonInvalidRoute, reservation.ReasonInvalidSeat, reservation.ReasonValidationFailed:
		return Validation
	}
	return Transport
}

// failureNote builds the message for a failed reservation operation.
func failureNote(r reservation.Result) Notification {
	n := Notification{Kind: KindOf(r.Err), Reason: reservation.Reason(r.Err)}
	if len(r.SeatIDs) == 1 {
		n.SeatID = r.SeatIDs[0]
	}
	seat := string(n.SeatID)
	switch n.Reason {
	case reservation.ReasonSeatUnavailable:
		n.Message = fmt.Sprintf("Seat %s was just taken by another customer.", seat)
	case reservation.ReasonSeatNoLongerHeld:
		if r.Op == reservation.OpBook {
			n.Message = "Some of your seats are no longer held. Please choose your seats again."
		} else {
			n.Message = fmt.Sprintf("Seat %s is no longer held by you.", seat)
		}
	case reservation.ReasonInvalidTrip:
		n.Message = "This trip is no longer available."
	case reservation.ReasonInvalidSeat:
		n.Message = fmt.Sprintf("Seat %s does not exist on this bus.", seat)
	case reservation.ReasonValidationFailed:
		n.Message = "The booking details were rejected: " + errMessage(r.Err)
	case reservation.ReasonSessionExpired:
		n.Message = "Your session has expired. Please restart the booking."
	case reservation.ReasonRateLimited:
		n.Message = "Too many requests. Please wait a moment and retry."
	case reservation.ReasonNetworkError:
		n.Message = fmt.Sprintf("Could not reach the server to %s. Press r to retry.", r.Op)
	default:
		n.Message = fmt.Sprintf("The server failed to %s. Press r to retry.", r.Op)
	}
	return n
}

func errMessage(err error) string {
	if re, ok := err.(*reservation.Error); ok && re.Message != "" {
		return re.Message
	}
	return err.Error()
}
