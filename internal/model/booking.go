package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CustomerInfo is the passenger information captured before booking.
// NationalID is the citizen identity card number; it is sent to the server
// in clear and only stored hashed.
type CustomerInfo struct {
	Name       string `json:"name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,numeric,min=9,max=15"`
	NationalID string `json:"cccd" validate:"required,alphanum,max=20"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
}

// ErrInvalidCustomer wraps every customer validation failure.
var ErrInvalidCustomer = errors.New("invalid customer information")

var validate = validator.New()

// Normalize trims surrounding whitespace from every field.
func (c CustomerInfo) Normalize() CustomerInfo {
	return CustomerInfo{
		Name:       strings.TrimSpace(c.Name),
		Phone:      strings.TrimSpace(c.Phone),
		NationalID: strings.TrimSpace(c.NationalID),
		Email:      strings.TrimSpace(c.Email),
	}
}

// Validate checks the (already normalised) customer fields.  The returned
// error wraps ErrInvalidCustomer and names the first offending field.
func (c CustomerInfo) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidCustomer, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
	}
	return nil
}

// BookingDraft is created when the user leaves seat selection.  SeatIDs
// keeps the order in which seats were selected.
type BookingDraft struct {
	TripID       string
	SeatIDs      []SeatID
	CustomerInfo CustomerInfo
	// TotalPrice is the client-side estimate: route base price times seats.
	TotalPrice int64
}

// Booking is a committed sale of one or more seats on a trip.
//
// Fields:
//
//	ID         – booking identifier, "BK" followed by 8 upper-case hex digits.
//	TripID     – trip the seats belong to.
//	SeatIDs    – seats sold, in request order.
//	Customer   – passenger information.
//	TotalPrice – server-computed total.
//	SessionID  – session that held the seats.
//	CreatedAt  – commit time (UTC).
type Booking struct {
	ID         string       `json:"id"`
	TripID     string       `json:"trip_id"`
	SeatIDs    []SeatID     `json:"seat_ids"`
	Customer   CustomerInfo `json:"customer"`
	TotalPrice int64        `json:"total_price"`
	SessionID  string       `json:"-"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Confirmation is what the client keeps after a successful booking.
type Confirmation struct {
	BookingID  string
	TripID     string
	SeatIDs    []SeatID
	Customer   CustomerInfo
	TotalPrice int64
	// ServerTotal is the total reported by the server; it may differ from
	// TotalPrice if the fare changed after the trip was chosen.
	ServerTotal int64
}
