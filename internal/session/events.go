package session

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/reconciler"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
	"github.com/iliyamo/bus-seat-reservation/internal/workflow"
)

func (s *Session) handleResult(r reservation.Result) {
	if r.Op == reservation.OpBook {
		s.handleBook(r)
		return
	}
	changes, applied := r.Apply(s.seats)
	if !applied {
		s.log.Debug("discard result for inactive trip",
			zap.String("op", r.Op.String()),
			zap.String("trip_id", r.TripID),
		)
		return
	}
	for _, id := range r.SeatIDs {
		delete(s.pending, id)
	}
	if r.Err != nil {
		s.failed(r)
		return
	}
	s.reportChanges(changes)
}

func (s *Session) handleBook(r reservation.Result) {
	s.booking = false
	st := s.wf.State()
	current := st.Step == workflow.CustomerDetails && st.Draft != nil && st.Draft.TripID == r.TripID

	if r.Err != nil {
		if !current {
			s.log.Debug("discard book failure for abandoned draft", zap.String("trip_id", r.TripID), zap.Error(r.Err))
			return
		}
		s.failed(r)
		return
	}

	r.Apply(s.seats)
	if !current {
		s.notify(Notification{Kind: Info, Message: fmt.Sprintf("Booking %s was confirmed for trip %s.", r.Ack.BookingID, r.TripID)})
		return
	}

	conf := model.Confirmation{
		BookingID:   r.Ack.BookingID,
		TripID:      r.TripID,
		SeatIDs:     append([]model.SeatID(nil), r.SeatIDs...),
		Customer:    st.Draft.CustomerInfo,
		TotalPrice:  st.Draft.TotalPrice,
		ServerTotal: r.Ack.TotalPrice,
	}
	if err := s.wf.Booked(conf); err != nil {
		s.log.Warn("record booking", zap.Error(err))
		return
	}
	s.retry = nil
	msg := fmt.Sprintf("Booking %s confirmed.", conf.BookingID)
	if r.Ack.Existing {
		msg = fmt.Sprintf("Booking %s was already confirmed.", conf.BookingID)
	}
	s.notify(Notification{Kind: Info, Message: msg})
	if conf.ServerTotal != 0 && conf.ServerTotal != conf.TotalPrice {
		s.notify(Notification{Kind: Info, Message: fmt.Sprintf("The fare changed: the server charged %d instead of %d.", conf.ServerTotal, conf.TotalPrice)})
	}
	s.startUploads(conf.BookingID)
}

// failed reports a failed operation and starts the follow-up the failure
// calls for: contention re-fetches the map, transport errors can be retried.
func (s *Session) failed(r reservation.Result) {
	n := failureNote(r)
	s.notify(n)
	switch n.Kind {
	case Contention:
		s.refreshSeats()
	case Transport:
		if n.Reason == reservation.ReasonSessionExpired {
			return
		}
		s.retry = s.retryFor(r)
	}
}

func (s *Session) retryFor(r reservation.Result) func() {
	switch r.Op {
	case reservation.OpSelect, reservation.OpUnselect:
		id := r.SeatIDs[0]
		return func() {
			if s.seats == nil || s.seats.TripID() != r.TripID {
				return
			}
			if _, busy := s.pending[id]; busy {
				return
			}
			s.sendSeat(r.Op, id)
		}
	case reservation.OpBook:
		return func() {
			st := s.wf.State()
			if st.Step != workflow.CustomerDetails || st.Draft == nil || s.booking {
				return
			}
			s.sendBook(st.Draft.TripID, st.Draft.SeatIDs, st.Draft.CustomerInfo)
		}
	}
	return nil
}

func (s *Session) handleUpdate(u model.SeatUpdate) {
	if u.Type != "" && u.Type != model.SeatUpdateType {
		return
	}
	s.handleOutcome(s.rec.Observe(u, s.seats))
}

func (s *Session) applySnapshot(snap model.TripSnapshot) {
	s.handleOutcome(s.rec.ObserveSnapshot(snap, s.seats))
}

func (s *Session) handleOutcome(out reconciler.Outcome) {
	s.announce(out.Changes)
	if out.Refetch {
		s.refreshSeats()
	}
}

// reportChanges announces changes found while applying a result and
// re-fetches the map when one of them is a conflict.
func (s *Session) reportChanges(changes []seatmap.Change) {
	if s.announce(changes) {
		s.refreshSeats()
	}
}

// announce notifies every change and reports whether any was a conflict.
func (s *Session) announce(changes []seatmap.Change) (conflict bool) {
	for _, c := range changes {
		switch c.Kind {
		case seatmap.Conflict:
			conflict = true
			s.notify(Notification{Kind: Conflict, SeatID: c.SeatID, Message: fmt.Sprintf("Seat %s has been booked and is no longer yours.", c.SeatID)})
		case seatmap.SelectionLost:
			s.notify(Notification{Kind: StaleSelection, SeatID: c.SeatID, Message: fmt.Sprintf("Your hold on seat %s expired.", c.SeatID)})
		}
	}
	return conflict
}

func (s *Session) startUploads(bookingID string) {
	files := s.files
	s.files = nil
	if s.uploader == nil || len(files) == 0 {
		return
	}
	ctx := s.ctx
	for _, path := range files {
		path := strings.TrimSpace(path)
		if path == "" {
			continue
		}
		go func() {
			name, err := s.uploader.Upload(ctx, bookingID, path)
			s.post(func() {
				if err != nil {
					s.notify(Notification{Kind: Transport, Message: fmt.Sprintf("Upload of %s failed: %v", filepath.Base(path), err)})
					return
				}
				s.notify(Notification{Kind: Info, Message: fmt.Sprintf("Uploaded %s as %s.", filepath.Base(path), name)})
			})
		}()
	}
}
