package model

import (
	"fmt"
	"strings"
)

// SeatID identifies a seat within a trip.  The reference layout uses
// `<deck>-<row><index>` such as T1-A05, but callers must treat the value
// as opaque: it only needs to be unique per trip and survive display.
type SeatID string

// SeatStatus is the aggregate status of a seat as the server reports it.
// The server never tells a client which session holds a seat, so a hold
// owned by the local client and a hold owned by someone else look the same
// on the wire.
type SeatStatus string

const (
	StatusAvailable SeatStatus = "available" // free to select
	StatusHeld      SeatStatus = "held"      // temporarily claimed by some session
	StatusBooked    SeatStatus = "booked"    // sold under a booking
)

// Valid reports whether s is one of the three known statuses.
func (s SeatStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusHeld, StatusBooked:
		return true
	}
	return false
}

// SeatRecord is one entry of a trip seat map as exchanged with the server.
//
// Fields:
//
//	SeatID – seat identifier (omitted on the wire where the map key carries it).
//	Status – aggregate seat status.
type SeatRecord struct {
	SeatID SeatID     `json:"seat_id,omitempty"`
	Status SeatStatus `json:"status"`
}

// SeatRecords maps seat identifiers to their records for one trip.  A seat
// missing from the map is available.
type SeatRecords map[SeatID]SeatRecord

// StatusOf returns the status recorded for id, defaulting to available.
// Unknown status strings are also treated as available.
func (r SeatRecords) StatusOf(id SeatID) SeatStatus {
	rec, ok := r[id]
	if !ok || !rec.Status.Valid() {
		return StatusAvailable
	}
	return rec.Status
}

// Deck describes one level of the bus.  Seats on a deck are numbered from
// one, zero padded to two digits.
type Deck struct {
	Prefix string // e.g. "T1-A"
	Seats  int
}

// SeatID returns the identifier of the n-th (1-based) seat on the deck.
func (d Deck) SeatID(n int) SeatID {
	return SeatID(fmt.Sprintf("%s%02d", d.Prefix, n))
}

// Layout is the ordered list of decks of a vehicle.
type Layout []Deck

// DefaultTotalSeats is used when a trip does not declare a seat count.
const DefaultTotalSeats = 40

// StandardLayout splits total seats over two decks, the lower deck taking
// the extra seat when total is odd.  Non-positive totals fall back to
// DefaultTotalSeats.
func StandardLayout(total int) Layout {
	if total <= 0 {
		total = DefaultTotalSeats
	}
	lower := (total + 1) / 2
	return Layout{
		{Prefix: "T1-A", Seats: lower},
		{Prefix: "T2-B", Seats: total - lower},
	}
}

// SeatIDs lists every seat of the layout in display order.
func (l Layout) SeatIDs() []SeatID {
	var out []SeatID
	for _, d := range l {
		for i := 1; i <= d.Seats; i++ {
			out = append(out, d.SeatID(i))
		}
	}
	return out
}

// Label returns the part of a seat id after the deck separator, used as
// the short label on a seat grid (T1-A05 -> A05).
func (id SeatID) Label() string {
	s := string(id)
	if i := strings.IndexByte(s, '-'); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return s
}
