// Package workflow sequences one booking: route, date, trip, seats,
// customer details and confirmation.  It only records what has been chosen
// and which transitions are legal.  Fetching data and talking to the seat
// server is the session's job.
package workflow

import (
	"errors"
	"fmt"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Step is a screen of the booking flow.
type Step int

const (
	RouteSelect Step = iota
	DateSelect
	TripSelect
	SeatSelect
	CustomerDetails
	Confirmation
)

var stepNames = [...]string{"route_select", "date_select", "trip_select", "seat_select", "customer_details", "confirmation"}

func (s Step) String() string {
	if s < RouteSelect || s > Confirmation {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

var (
	// ErrInvalidTransition is returned for a transition not allowed from
	// the current step.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrNoSeats is returned when leaving seat selection with nothing held.
	ErrNoSeats = errors.New("workflow: no seats selected")
	// ErrTerminal is returned for navigation out of Confirmation; a new
	// booking starts with Restart.
	ErrTerminal = errors.New("workflow: booking already confirmed")
)

// State is a copy of everything chosen so far.
type State struct {
	Step         Step
	Routes       []model.Route
	Route        *model.Route
	Dates        []string
	Date         string
	Trips        []model.Trip
	Trip         *model.Trip
	Draft        *model.BookingDraft
	Confirmation *model.Confirmation
}

// Machine holds the workflow state of one session.  It is not safe for
// concurrent use.
type Machine struct {
	st State
}

// New returns a machine at RouteSelect.
func New() *Machine { return &Machine{} }

// Step returns the current step.
func (m *Machine) Step() Step { return m.st.Step }

// State returns a deep enough copy of the state for display.
func (m *Machine) State() State {
	s := m.st
	s.Routes = append([]model.Route(nil), m.st.Routes...)
	s.Dates = append([]string(nil), m.st.Dates...)
	s.Trips = append([]model.Trip(nil), m.st.Trips...)
	if m.st.Route != nil {
		r := *m.st.Route
		s.Route = &r
	}
	if m.st.Trip != nil {
		t := *m.st.Trip
		s.Trip = &t
	}
	if m.st.Draft != nil {
		d := *m.st.Draft
		d.SeatIDs = append([]model.SeatID(nil), m.st.Draft.SeatIDs...)
		s.Draft = &d
	}
	if m.st.Confirmation != nil {
		c := *m.st.Confirmation
		c.SeatIDs = append([]model.SeatID(nil), m.st.Confirmation.SeatIDs...)
		s.Confirmation = &c
	}
	return s
}

// SetRoutes records route search results shown at RouteSelect.
func (m *Machine) SetRoutes(routes []model.Route) error {
	if m.st.Step != RouteSelect {
		return m.invalid("set routes")
	}
	m.st.Routes = routes
	return nil
}

// RouteChosen advances RouteSelect to DateSelect once the route's dates
// are fetched.
func (m *Machine) RouteChosen(route model.Route, dates []string) error {
	if m.st.Step != RouteSelect {
		return m.invalid("choose route")
	}
	m.st.Route = &route
	m.st.Dates = dates
	m.st.Step = DateSelect
	return nil
}

// DateChosen advances DateSelect to TripSelect once the trips are fetched.
func (m *Machine) DateChosen(date string, trips []model.Trip) error {
	if m.st.Step != DateSelect {
		return m.invalid("choose date")
	}
	m.st.Date = date
	m.st.Trips = trips
	m.st.Step = TripSelect
	return nil
}

// TripChosen advances TripSelect to SeatSelect once the trip info and seat
// map are fetched.  The caller binds a fresh seat map to trip.
func (m *Machine) TripChosen(trip model.Trip) error {
	if m.st.Step != TripSelect {
		return m.invalid("choose trip")
	}
	m.st.Trip = &trip
	m.st.Step = SeatSelect
	return nil
}

// SeatsConfirmed leaves SeatSelect with the held seats and creates the
// booking draft.  The total is the route base price times the seat count.
func (m *Machine) SeatsConfirmed(selection []model.SeatID) (model.BookingDraft, error) {
	if m.st.Step != SeatSelect {
		return model.BookingDraft{}, m.invalid("confirm seats")
	}
	if len(selection) == 0 {
		return model.BookingDraft{}, ErrNoSeats
	}
	d := model.BookingDraft{
		TripID:  m.st.Trip.ID,
		SeatIDs: append([]model.SeatID(nil), selection...),
	}
	if m.st.Route != nil {
		d.TotalPrice = m.st.Route.BasePrice * int64(len(selection))
	}
	m.st.Draft = &d
	m.st.Step = CustomerDetails
	return d, nil
}

// SetCustomer stores the customer information entered on the form.
func (m *Machine) SetCustomer(info model.CustomerInfo) error {
	if m.st.Step != CustomerDetails || m.st.Draft == nil {
		return m.invalid("set customer")
	}
	m.st.Draft.CustomerInfo = info
	return nil
}

// Booked records a successful booking and enters Confirmation.
func (m *Machine) Booked(c model.Confirmation) error {
	if m.st.Step != CustomerDetails {
		return m.invalid("record booking")
	}
	m.st.Confirmation = &c
	m.st.Draft = nil
	m.st.Step = Confirmation
	return nil
}

// Back moves to an earlier step.  Choices made on later steps are
// forgotten; the step being returned to keeps its own data.  Held seats
// are not touched.
func (m *Machine) Back(to Step) error {
	if m.st.Step == Confirmation {
		return ErrTerminal
	}
	if to < RouteSelect || to >= m.st.Step {
		return m.invalid("back to " + to.String())
	}
	if to < CustomerDetails {
		m.st.Draft = nil
	}
	if to < SeatSelect {
		m.st.Trip = nil
	}
	if to < TripSelect {
		m.st.Date = ""
		m.st.Trips = nil
	}
	if to < DateSelect {
		m.st.Route = nil
		m.st.Dates = nil
	}
	m.st.Step = to
	return nil
}

// Restart returns to an empty RouteSelect.
func (m *Machine) Restart() { m.st = State{} }

func (m *Machine) invalid(op string) error {
	return fmt.Errorf("%w: %s at %s", ErrInvalidTransition, op, m.st.Step)
}
