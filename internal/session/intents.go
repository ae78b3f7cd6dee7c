package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
	"github.com/iliyamo/bus-seat-reservation/internal/workflow"
)

// Fetch slots.  Navigation fetches share one slot so that only the latest
// choice is applied.
const (
	slotCities = "cities"
	slotRoutes = "routes"
	slotNav    = "nav"
	slotSeats  = "seats"
)

// LoadCities fetches the city lists.
func (s *Session) LoadCities() {
	s.post(func() {
		s.fetch(slotCities, func(ctx context.Context) (func(), error) {
			cities, err := s.catalog.ListCities(ctx)
			return func() { s.cities = cities }, err
		})
	})
}

// SearchRoutes looks up routes between two cities.
func (s *Session) SearchRoutes(from, to string) {
	s.post(func() {
		if s.wf.Step() != workflow.RouteSelect {
			return
		}
		s.fetch(slotRoutes, func(ctx context.Context) (func(), error) {
			routes, err := s.catalog.SearchRoutes(ctx, from, to)
			return func() {
				if err := s.wf.SetRoutes(routes); err != nil {
					return
				}
				if len(routes) == 0 {
					s.notify(Notification{Kind: Info, Message: fmt.Sprintf("No routes from %s to %s.", from, to)})
				}
			}, err
		})
	})
}

// ChooseRoute picks one of the searched routes and loads its dates.
func (s *Session) ChooseRoute(routeID string) {
	s.post(func() {
		st := s.wf.State()
		if st.Step != workflow.RouteSelect {
			return
		}
		var route *model.Route
		for i := range st.Routes {
			if st.Routes[i].ID == routeID {
				route = &st.Routes[i]
				break
			}
		}
		if route == nil {
			s.notify(Notification{Kind: Validation, Message: "Please choose one of the listed routes."})
			return
		}
		chosen := *route
		s.fetch(slotNav, func(ctx context.Context) (func(), error) {
			dates, err := s.catalog.ListDates(ctx, chosen.ID)
			return func() {
				if err := s.wf.RouteChosen(chosen, dates); err != nil {
					s.log.Debug("route result ignored", zap.Error(err))
				}
			}, err
		})
	})
}

// ChooseDate loads the trips of the chosen route on date.
func (s *Session) ChooseDate(date string) {
	s.post(func() {
		st := s.wf.State()
		if st.Step != workflow.DateSelect || st.Route == nil {
			return
		}
		routeID := st.Route.ID
		s.fetch(slotNav, func(ctx context.Context) (func(), error) {
			trips, err := s.catalog.SearchTrips(ctx, routeID, date)
			return func() {
				if err := s.wf.DateChosen(date, trips); err != nil {
					s.log.Debug("date result ignored", zap.Error(err))
				}
			}, err
		})
	})
}

// ChooseTrip loads the trip and its seat map and enters seat selection
// with a fresh, empty selection.
func (s *Session) ChooseTrip(tripID string) {
	s.post(func() {
		if s.wf.Step() != workflow.TripSelect {
			return
		}
		s.fetch(slotNav, func(ctx context.Context) (func(), error) {
			trip, err := s.catalog.GetTrip(ctx, tripID)
			if err != nil {
				return nil, err
			}
			snap, err := s.reserver.Seats(ctx, tripID)
			if err != nil {
				return nil, err
			}
			return func() {
				if err := s.wf.TripChosen(trip); err != nil {
					s.log.Debug("trip result ignored", zap.Error(err))
					return
				}
				s.bind(trip)
				s.rec.ObserveSnapshot(snap, s.seats)
			}, nil
		})
	})
}

// bind replaces the active seat map with one for trip.
func (s *Session) bind(trip model.Trip) {
	s.seats = s.rec.Rebind(trip.ID)
	s.layout = trip.Layout()
	s.pending = make(map[model.SeatID]reservation.Op)
	s.invalidate(slotSeats)
}

// ToggleSeat selects an available seat or releases a held one.  The seat
// map only changes when the server answers.
func (s *Session) ToggleSeat(id model.SeatID) {
	s.post(func() {
		if s.wf.Step() != workflow.SeatSelect || s.seats == nil {
			return
		}
		if _, busy := s.pending[id]; busy {
			return
		}
		if !s.inLayout(id) {
			s.notify(Notification{Kind: Validation, SeatID: id, Message: fmt.Sprintf("Seat %s does not exist on this bus.", id)})
			return
		}
		switch s.seats.DisplayStatus(id) {
		case seatmap.Mine:
			s.sendSeat(reservation.OpUnselect, id)
		case seatmap.Available:
			s.sendSeat(reservation.OpSelect, id)
		case seatmap.HeldByOther:
			s.notify(Notification{Kind: Contention, SeatID: id, Message: fmt.Sprintf("Seat %s is being held by another customer.", id)})
		case seatmap.Booked:
			s.notify(Notification{Kind: Contention, SeatID: id, Message: fmt.Sprintf("Seat %s is already booked.", id)})
		}
	})
}

func (s *Session) inLayout(id model.SeatID) bool {
	for _, sid := range s.layout.SeatIDs() {
		if sid == id {
			return true
		}
	}
	return false
}

func (s *Session) sendSeat(op reservation.Op, id model.SeatID) {
	tripID := s.seats.TripID()
	s.pending[id] = op
	ctx := s.ctx
	go func() {
		var (
			ack reservation.Ack
			err error
		)
		if op == reservation.OpSelect {
			ack, err = s.reserver.Select(ctx, tripID, id)
		} else {
			ack, err = s.reserver.Unselect(ctx, tripID, id)
		}
		s.deliver(reservation.Result{Op: op, TripID: tripID, SeatIDs: []model.SeatID{id}, Ack: ack, Err: err})
	}()
}

// ContinueToDetails leaves seat selection with the held seats.
func (s *Session) ContinueToDetails() {
	s.post(func() {
		if s.wf.Step() != workflow.SeatSelect || s.seats == nil {
			return
		}
		if _, err := s.wf.SeatsConfirmed(s.seats.Selection()); err != nil {
			if errors.Is(err, workflow.ErrNoSeats) {
				s.notify(Notification{Kind: Validation, Message: "Please select at least one seat."})
			}
			return
		}
	})
}

// SubmitBooking validates info and books the drafted seats.  files are
// uploaded once the booking is confirmed.
func (s *Session) SubmitBooking(info model.CustomerInfo, files []string) {
	s.post(func() {
		st := s.wf.State()
		if st.Step != workflow.CustomerDetails || st.Draft == nil || s.booking {
			return
		}
		info = info.Normalize()
		if err := info.Validate(); err != nil {
			s.notify(Notification{Kind: Validation, Message: "Please check the passenger details: " + err.Error()})
			return
		}
		draft := *st.Draft
		for _, id := range draft.SeatIDs {
			if s.seats == nil || !s.seats.IsMine(id) {
				s.notify(Notification{Kind: StaleSelection, SeatID: id, Message: fmt.Sprintf("Seat %s is no longer held. Go back and choose your seats again.", id)})
				return
			}
		}
		if err := s.wf.SetCustomer(info); err != nil {
			return
		}
		s.files = append([]string(nil), files...)
		s.sendBook(draft.TripID, draft.SeatIDs, info)
	})
}

func (s *Session) sendBook(tripID string, seatIDs []model.SeatID, info model.CustomerInfo) {
	s.booking = true
	ctx := s.ctx
	go func() {
		ack, err := s.reserver.Book(ctx, tripID, seatIDs, info)
		s.deliver(reservation.Result{Op: reservation.OpBook, TripID: tripID, SeatIDs: seatIDs, Ack: ack, Err: err})
	}()
}

// Back navigates to an earlier step.  Held seats stay held; going back from
// customer details to seat selection keeps the seat map as it is.
func (s *Session) Back(to workflow.Step) {
	s.post(func() {
		if s.booking {
			// the book response decides between details and confirmation
			return
		}
		if err := s.wf.Back(to); err != nil {
			s.log.Debug("back rejected", zap.Error(err))
			return
		}
		s.invalidate(slotNav)
		if to == workflow.RouteSelect {
			s.invalidate(slotRoutes)
		}
	})
}

// Restart abandons the booking and returns to route selection.
func (s *Session) Restart() {
	s.post(func() {
		s.wf.Restart()
		s.invalidate(slotNav, slotRoutes, slotSeats)
		s.seats = nil
		s.layout = nil
		s.pending = make(map[model.SeatID]reservation.Op)
		s.files = nil
		s.retry = nil
	})
}

// Refresh re-fetches the seat map of the active trip.
func (s *Session) Refresh() {
	s.post(s.refreshSeats)
}

func (s *Session) refreshSeats() {
	if s.seats == nil {
		return
	}
	tripID := s.seats.TripID()
	s.fetch(slotSeats, func(ctx context.Context) (func(), error) {
		snap, err := s.reserver.Seats(ctx, tripID)
		return func() { s.applySnapshot(snap) }, err
	})
}

// Retry repeats the last operation that failed for transport reasons.
func (s *Session) Retry() {
	s.post(func() {
		fn := s.retry
		s.retry = nil
		if fn != nil {
			fn()
		}
	})
}
