package workflow

import (
	"errors"
	"reflect"
	"testing"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

var (
	testRoute = model.Route{ID: "R001", FromCity: "Ha Noi", ToCity: "Hai Phong", BasePrice: 250000}
	testTrip  = model.Trip{ID: "T001", RouteID: "R001", Date: "2026-11-01", DepartureTime: "08:00"}
)

func toSeats(t *testing.T) *Machine {
	t.Helper()
	m := New()
	if err := m.RouteChosen(testRoute, []string{"2026-11-01"}); err != nil {
		t.Fatal(err)
	}
	if err := m.DateChosen("2026-11-01", []model.Trip{testTrip}); err != nil {
		t.Fatal(err)
	}
	if err := m.TripChosen(testTrip); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestForwardPath(t *testing.T) {
	m := toSeats(t)
	if m.Step() != SeatSelect {
		t.Fatalf("expected seat_select, got %s", m.Step())
	}
	d, err := m.SeatsConfirmed([]model.SeatID{"T1-A02", "T1-A01"})
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalPrice != 500000 || d.TripID != "T001" {
		t.Fatalf("unexpected draft %+v", d)
	}
	if !reflect.DeepEqual(d.SeatIDs, []model.SeatID{"T1-A02", "T1-A01"}) {
		t.Fatalf("expected selection order kept, got %v", d.SeatIDs)
	}
	if err := m.SetCustomer(model.CustomerInfo{Name: "An"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Booked(model.Confirmation{BookingID: "BK12345678"}); err != nil {
		t.Fatal(err)
	}
	st := m.State()
	if st.Step != Confirmation || st.Confirmation.BookingID != "BK12345678" || st.Draft != nil {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestNoSkipping(t *testing.T) {
	m := New()
	if err := m.DateChosen("2026-11-01", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := m.TripChosen(testTrip); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := m.SeatsConfirmed([]model.SeatID{"T1-A01"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := m.Booked(model.Confirmation{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if m.Step() != RouteSelect {
		t.Fatalf("expected route_select, got %s", m.Step())
	}
}

func TestSeatsConfirmed_RequiresSeat(t *testing.T) {
	m := toSeats(t)
	if _, err := m.SeatsConfirmed(nil); !errors.Is(err, ErrNoSeats) {
		t.Fatalf("expected ErrNoSeats, got %v", err)
	}
	if m.Step() != SeatSelect {
		t.Fatalf("expected to stay at seat_select, got %s", m.Step())
	}
}

func TestBack(t *testing.T) {
	m := toSeats(t)
	if _, err := m.SeatsConfirmed([]model.SeatID{"T1-A01"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Back(SeatSelect); err != nil {
		t.Fatal(err)
	}
	st := m.State()
	if st.Trip == nil || st.Draft != nil {
		t.Fatalf("expected trip kept and draft dropped, got %+v", st)
	}
	if err := m.Back(DateSelect); err != nil {
		t.Fatal(err)
	}
	st = m.State()
	if st.Route == nil || len(st.Dates) != 1 || st.Trips != nil || st.Date != "" {
		t.Fatalf("unexpected state after back to dates: %+v", st)
	}
	if err := m.Back(TripSelect); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected forward jump to fail, got %v", err)
	}
}

func TestBack_FromConfirmation(t *testing.T) {
	m := toSeats(t)
	if _, err := m.SeatsConfirmed([]model.SeatID{"T1-A01"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Booked(model.Confirmation{BookingID: "BK00000001"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Back(RouteSelect); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	m.Restart()
	if m.Step() != RouteSelect || m.State().Confirmation != nil {
		t.Fatalf("expected clean restart, got %+v", m.State())
	}
}

func TestStateIsCopy(t *testing.T) {
	m := toSeats(t)
	st := m.State()
	st.Trip.ID = "changed"
	st.Dates[0] = "changed"
	again := m.State()
	if again.Trip.ID != "T001" || again.Dates[0] != "2026-11-01" {
		t.Fatalf("State leaked internal data: %+v", again)
	}
}

func TestStepString(t *testing.T) {
	if CustomerDetails.String() != "customer_details" {
		t.Fatalf("unexpected %q", CustomerDetails.String())
	}
	if Step(42).String() != "step(42)" {
		t.Fatalf("unexpected %q", Step(42).String())
	}
}
