// Package seatstore is the authoritative seat inventory of the server.
//
// All seat state lives in memory behind one mutex.  Every mutation takes a
// new version stamp (unix milliseconds, forced strictly increasing), and a
// snapshot carries the newest stamp, so it reflects every mutation stamped
// at or before it.  Dirty trips are written behind to a Persister.
package seatstore

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

var (
	ErrInvalidTrip      = errors.New("invalid trip")
	ErrInvalidSeat      = errors.New("invalid seat")
	ErrSeatUnavailable  = errors.New("seat unavailable")
	ErrSeatNoLongerHeld = errors.New("seat no longer held")
)

// Lookup resolves a trip id to its catalog entry.
type Lookup func(tripID string) (model.Trip, bool)

// seat is the server-side state of one seat.
type seat struct {
	status    model.SeatStatus
	heldBy    string
	heldAt    time.Time
	bookingID string
	stamp     int64
}

type trip struct {
	layout  model.Layout
	seats   map[model.SeatID]*seat
	touched time.Time
}

type booking struct {
	tripID  string
	session string
	seats   []model.SeatID
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	trips    map[string]*trip
	bookings map[string]booking
	dirty    map[string]struct{}
	last     int64

	lookup      Lookup
	holdTTL     time.Duration
	watchWindow time.Duration
	now         func() time.Time
	log         *zap.Logger
	metrics     Observer
}

// Observer receives store events for metrics.
type Observer interface {
	SeatSelected(ok bool)
	SeatReleased()
	BookingCommitted(seats int)
	BookingRejected()
	HoldsExpired(n int)
}

type nopObserver struct{}

func (nopObserver) SeatSelected(bool)    {}
func (nopObserver) SeatReleased()        {}
func (nopObserver) BookingCommitted(int) {}
func (nopObserver) BookingRejected()     {}
func (nopObserver) HoldsExpired(int)     {}

// Option configures a Store.
type Option func(*Store)

// WithHoldTTL sets how long a hold lasts without being booked.
func WithHoldTTL(d time.Duration) Option { return func(s *Store) { s.holdTTL = d } }

// WithWatchWindow sets how long a trip counts as watched after its last access.
func WithWatchWindow(d time.Duration) Option { return func(s *Store) { s.watchWindow = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithObserver reports store events to o.
func WithObserver(o Observer) Option { return func(s *Store) { s.metrics = o } }

// New returns an empty store resolving trips through lookup.
func New(lookup Lookup, opts ...Option) *Store {
	s := &Store{
		trips:       make(map[string]*trip),
		bookings:    make(map[string]booking),
		dirty:       make(map[string]struct{}),
		lookup:      lookup,
		holdTTL:     5 * time.Minute,
		watchWindow: 10 * time.Minute,
		now:         time.Now,
		log:         zap.NewNop(),
		metrics:     nopObserver{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = nopObserver{}
	}
	return s
}

// nextStamp returns a stamp strictly greater than every stamp issued so
// far.  Callers hold s.mu.
func (s *Store) nextStamp() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// tripLocked returns the trip, creating its seats on first use.
func (s *Store) tripLocked(tripID string) (*trip, error) {
	if t, ok := s.trips[tripID]; ok {
		return t, nil
	}
	info, ok := s.lookup(tripID)
	if !ok {
		return nil, ErrInvalidTrip
	}
	t := &trip{layout: info.Layout(), seats: make(map[model.SeatID]*seat)}
	for _, id := range t.layout.SeatIDs() {
		t.seats[id] = &seat{status: model.StatusAvailable}
	}
	s.trips[tripID] = t
	return t, nil
}

func (s *Store) expired(st *seat, now time.Time) bool {
	return st.status == model.StatusHeld && s.holdTTL > 0 && now.Sub(st.heldAt) >= s.holdTTL
}

// expireTripLocked releases every expired hold of t and reports how many.
func (s *Store) expireTripLocked(tripID string, t *trip, now time.Time) int {
	n := 0
	var stamp int64
	for _, st := range t.seats {
		if !s.expired(st, now) {
			continue
		}
		if stamp == 0 {
			stamp = s.nextStamp()
		}
		*st = seat{status: model.StatusAvailable, stamp: stamp}
		n++
	}
	if n > 0 {
		s.dirty[tripID] = struct{}{}
	}
	return n
}

// Select holds seatID for session.  The seat must be available; an expired
// hold counts as available.  It returns the stamp of the new state.
func (s *Store) Select(tripID string, seatID model.SeatID, session string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tripLocked(tripID)
	if err != nil {
		return s.last, err
	}
	now := s.now()
	t.touched = now
	st, ok := t.seats[seatID]
	if !ok {
		return s.last, ErrInvalidSeat
	}
	if s.expired(st, now) {
		s.metrics.HoldsExpired(s.expireTripLocked(tripID, t, now))
	}
	if st.status != model.StatusAvailable {
		s.metrics.SeatSelected(false)
		return s.last, ErrSeatUnavailable
	}
	*st = seat{status: model.StatusHeld, heldBy: session, heldAt: now, stamp: s.nextStamp()}
	s.dirty[tripID] = struct{}{}
	s.metrics.SeatSelected(true)
	return st.stamp, nil
}

// Unselect releases a seat held by session.
func (s *Store) Unselect(tripID string, seatID model.SeatID, session string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tripLocked(tripID)
	if err != nil {
		return s.last, err
	}
	now := s.now()
	t.touched = now
	st, ok := t.seats[seatID]
	if !ok {
		return s.last, ErrInvalidSeat
	}
	if st.status != model.StatusHeld || st.heldBy != session || s.expired(st, now) {
		return s.last, ErrSeatNoLongerHeld
	}
	*st = seat{status: model.StatusAvailable, stamp: s.nextStamp()}
	s.dirty[tripID] = struct{}{}
	s.metrics.SeatReleased()
	return st.stamp, nil
}

// BookResult is a committed (or replayed) booking.
type BookResult struct {
	BookingID string
	Stamp     int64
	Existing  bool
}

// Commit persists a booking before the store marks its seats booked.  If
// it fails nothing changes.  It runs with the store locked.
type Commit func(bookingID string) error

// Book sells seatIDs to session under one booking id.  Every seat must be
// held by session and not expired, otherwise ErrSeatNoLongerHeld is
// returned and nothing changes.  Booking the same seats again from the same
// session returns the existing booking.
func (s *Store) Book(tripID string, seatIDs []model.SeatID, session string, newID func() string, commit Commit) (BookResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tripLocked(tripID)
	if err != nil {
		return BookResult{}, err
	}
	ids := dedupe(seatIDs)
	if len(ids) == 0 {
		return BookResult{}, ErrInvalidSeat
	}
	now := s.now()
	t.touched = now
	for _, id := range ids {
		if _, ok := t.seats[id]; !ok {
			return BookResult{}, ErrInvalidSeat
		}
	}
	if id, ok := s.replayLocked(tripID, t, ids, session); ok {
		return BookResult{BookingID: id, Stamp: s.last, Existing: true}, nil
	}
	for _, id := range ids {
		st := t.seats[id]
		if st.status != model.StatusHeld || st.heldBy != session || s.expired(st, now) {
			s.metrics.BookingRejected()
			return BookResult{}, ErrSeatNoLongerHeld
		}
	}
	bookingID := newID()
	for {
		if _, dup := s.bookings[bookingID]; !dup {
			break
		}
		bookingID = newID()
	}
	if commit != nil {
		if err := commit(bookingID); err != nil {
			return BookResult{}, err
		}
	}
	stamp := s.nextStamp()
	for _, id := range ids {
		*t.seats[id] = seat{status: model.StatusBooked, heldBy: session, heldAt: now, bookingID: bookingID, stamp: stamp}
	}
	s.bookings[bookingID] = booking{tripID: tripID, session: session, seats: ids}
	s.dirty[tripID] = struct{}{}
	s.metrics.BookingCommitted(len(ids))
	return BookResult{BookingID: bookingID, Stamp: stamp}, nil
}

// HasBooking reports whether bookingID was committed through the store.
func (s *Store) HasBooking(bookingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bookings[bookingID]
	return ok
}

// replayLocked finds a booking of exactly ids by session.
func (s *Store) replayLocked(tripID string, t *trip, ids []model.SeatID, session string) (string, bool) {
	first := t.seats[ids[0]]
	if first.status != model.StatusBooked || first.bookingID == "" {
		return "", false
	}
	b, ok := s.bookings[first.bookingID]
	if !ok || b.session != session || b.tripID != tripID || len(b.seats) != len(ids) {
		return "", false
	}
	for _, id := range ids {
		if st := t.seats[id]; st.status != model.StatusBooked || st.bookingID != first.bookingID {
			return "", false
		}
	}
	return first.bookingID, true
}

// ExpireHolds releases every hold older than the hold TTL and returns the
// number of seats released.
func (s *Store) ExpireHolds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, t := range s.trips {
		n += s.expireTripLocked(id, t, now)
	}
	if n > 0 {
		s.metrics.HoldsExpired(n)
	}
	return n
}

// Snapshot returns the seat map of a trip.  Available seats are omitted.
func (s *Store) Snapshot(tripID string) (model.TripSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tripLocked(tripID)
	if err != nil {
		return model.TripSnapshot{}, err
	}
	now := s.now()
	t.touched = now
	s.metrics.HoldsExpired(s.expireTripLocked(tripID, t, now))
	return model.TripSnapshot{TripID: tripID, Timestamp: s.stampLocked(), Seats: records(t)}, nil
}

// Update returns a broadcast update with the seat maps of at most limit
// trips accessed within the watch window, most recently accessed first.
// ok is false when no trip is watched.
func (s *Store) Update(limit int) (model.SeatUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	type watched struct {
		id      string
		touched time.Time
	}
	var list []watched
	for id, t := range s.trips {
		if !t.touched.IsZero() && now.Sub(t.touched) <= s.watchWindow {
			list = append(list, watched{id, t.touched})
		}
	}
	if len(list) == 0 {
		return model.SeatUpdate{}, false
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].touched.Equal(list[j].touched) {
			return list[i].id < list[j].id
		}
		return list[i].touched.After(list[j].touched)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	expired := 0
	data := make(map[string]model.SeatRecords, len(list))
	for _, w := range list {
		t := s.trips[w.id]
		expired += s.expireTripLocked(w.id, t, now)
		data[w.id] = records(t)
	}
	if expired > 0 {
		s.metrics.HoldsExpired(expired)
	}
	return model.SeatUpdate{Type: model.SeatUpdateType, Timestamp: s.stampLocked(), SeatsData: data}, true
}

// AvailableCount returns the number of seats of a trip that can be selected.
func (s *Store) AvailableCount(tripID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tripLocked(tripID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, st := range t.seats {
		if st.status == model.StatusAvailable || s.expired(st, now) {
			n++
		}
	}
	return n, nil
}

// Stamp returns the newest version stamp issued by the store.
func (s *Store) Stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stampLocked()
}

// stampLocked returns the current stamp, issuing one if nothing has been
// stamped yet so that the first snapshot is never stamped zero.
func (s *Store) stampLocked() int64 {
	if s.last == 0 {
		return s.nextStamp()
	}
	return s.last
}

func records(t *trip) model.SeatRecords {
	out := make(model.SeatRecords)
	for id, st := range t.seats {
		if st.status == model.StatusAvailable {
			continue
		}
		out[id] = model.SeatRecord{Status: st.status}
	}
	return out
}

func dedupe(ids []model.SeatID) []model.SeatID {
	seen := make(map[model.SeatID]struct{}, len(ids))
	out := make([]model.SeatID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
