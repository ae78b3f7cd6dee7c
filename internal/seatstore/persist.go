package seatstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// SeatState is the persisted form of one non-available seat.
type SeatState struct {
	TripID    string
	SeatID    model.SeatID
	Status    model.SeatStatus
	HeldBy    string
	HeldAt    time.Time
	BookingID string
	Stamp     int64
}

// Persister stores seat states.  SaveTrip replaces every stored seat of
// the trip with seats.
type Persister interface {
	LoadSeats(ctx context.Context) ([]SeatState, error)
	SaveTrip(ctx context.Context, tripID string, seats []SeatState) error
}

// Load restores seat states saved by a Persister.  Seats of trips the
// lookup no longer knows are skipped.
func (s *Store) Load(ctx context.Context, p Persister) error {
	states, err := p.LoadSeats(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	skipped := 0
	for _, ss := range states {
		t, err := s.tripLocked(ss.TripID)
		if err != nil {
			skipped++
			continue
		}
		st, ok := t.seats[ss.SeatID]
		if !ok || !ss.Status.Valid() {
			skipped++
			continue
		}
		*st = seat{status: ss.Status, heldBy: ss.HeldBy, heldAt: ss.HeldAt, bookingID: ss.BookingID, stamp: ss.Stamp}
		if ss.Stamp > s.last {
			s.last = ss.Stamp
		}
		if ss.Status == model.StatusBooked && ss.BookingID != "" {
			b := s.bookings[ss.BookingID]
			b.tripID, b.session = ss.TripID, ss.HeldBy
			b.seats = append(b.seats, ss.SeatID)
			s.bookings[ss.BookingID] = b
		}
	}
	s.log.Info("seat state loaded", zap.Int("seats", len(states)-skipped), zap.Int("skipped", skipped))
	return nil
}

// takeDirty returns the state of every trip changed since the last call.
func (s *Store) takeDirty() map[string][]SeatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}
	out := make(map[string][]SeatState, len(s.dirty))
	for tripID := range s.dirty {
		t := s.trips[tripID]
		states := []SeatState{}
		for id, st := range t.seats {
			if st.status == model.StatusAvailable {
				continue
			}
			states = append(states, SeatState{
				TripID:    tripID,
				SeatID:    id,
				Status:    st.status,
				HeldBy:    st.heldBy,
				HeldAt:    st.heldAt,
				BookingID: st.bookingID,
				Stamp:     st.stamp,
			})
		}
		out[tripID] = states
	}
	s.dirty = make(map[string]struct{})
	return out
}

func (s *Store) markDirty(tripID string) {
	s.mu.Lock()
	s.dirty[tripID] = struct{}{}
	s.mu.Unlock()
}

// Flush writes every dirty trip to p.  Trips that fail to save stay dirty.
func (s *Store) Flush(ctx context.Context, p Persister) error {
	var firstErr error
	for tripID, states := range s.takeDirty() {
		if err := p.SaveTrip(ctx, tripID, states); err != nil {
			s.markDirty(tripID)
			s.log.Warn("save seat state", zap.String("trip_id", tripID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RunPersister flushes dirty trips to p every interval until ctx is done,
// then flushes once more.
func (s *Store) RunPersister(ctx context.Context, p Persister, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.Flush(flushCtx, p)
			cancel()
			return
		case <-ticker.C:
			_ = s.Flush(ctx, p)
		}
	}
}

// RunSweeper releases expired holds every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ExpireHolds(); n > 0 {
				s.log.Info("expired holds released", zap.Int("seats", n))
			}
		}
	}
}
