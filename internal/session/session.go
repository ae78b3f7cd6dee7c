// Package session holds the state of one booking session and runs it on a
// single goroutine.
//
// User intents, reservation results and broadcast snapshots arrive on
// separate channels and are handled one at a time by Run, so the seat map,
// the reconciler and the workflow are only ever touched by that goroutine.
// Network calls run on their own goroutines and post their completions
// back to the loop.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/reconciler"
	"github.com/iliyamo/bus-seat-reservation/internal/reservation"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
	"github.com/iliyamo/bus-seat-reservation/internal/workflow"
)

// Catalog is the read-only reference data the session browses.
type Catalog interface {
	ListCities(ctx context.Context) (model.Cities, error)
	SearchRoutes(ctx context.Context, from, to string) ([]model.Route, error)
	ListDates(ctx context.Context, routeID string) ([]string, error)
	SearchTrips(ctx context.Context, routeID, date string) ([]model.Trip, error)
	GetTrip(ctx context.Context, tripID string) (model.Trip, error)
}

// Reserver performs seat operations against the seat server.
type Reserver interface {
	Select(ctx context.Context, tripID string, seatID model.SeatID) (reservation.Ack, error)
	Unselect(ctx context.Context, tripID string, seatID model.SeatID) (reservation.Ack, error)
	Book(ctx context.Context, tripID string, seatIDs []model.SeatID, info model.CustomerInfo) (reservation.Ack, error)
	Seats(ctx context.Context, tripID string) (model.TripSnapshot, error)
}

// Uploader stores an attachment for a booking and returns the stored name.
type Uploader interface {
	Upload(ctx context.Context, bookingID, path string) (string, error)
}

// ErrClosed is returned by View once Run has returned.
var ErrClosed = errors.New("session: closed")

// View is a copy of the session state for rendering.
//
// Fields:
//
//	Workflow  – the workflow state.
//	Cities    – city lists for the route search.
//	TripID    – trip of the bound seat map, "" before a trip is chosen.
//	Layout    – seat layout of the bound trip.
//	Seats     – display status per seat.
//	Free      – seats of the layout still available to select.
//	Selection – held seats in selection order.
//	Pending   – seats with a select or unselect in flight.
//	Busy      – a catalog fetch or booking is in flight.
//	Booking   – a book request is in flight.
//	Last      – latest notification, for a status line.
//	CanRetry  – Retry would repeat a failed operation.
type View struct {
	Workflow  workflow.State
	Cities    model.Cities
	TripID    string
	Layout    model.Layout
	Seats     map[model.SeatID]seatmap.Display
	Free      int
	Selection []model.SeatID
	Pending   map[model.SeatID]bool
	Busy      bool
	Booking   bool
	Last      *Notification
	CanRetry  bool
}

// Session is one booking session.  Create it with New and drive it with Run.
type Session struct {
	catalog  Catalog
	reserver Reserver
	uploader Uploader
	log      *zap.Logger

	actions   chan func()
	results   chan reservation.Result
	snapshots chan model.SeatUpdate
	notes     chan Notification
	changed   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the Run goroutine.
	ctx      context.Context
	wf       *workflow.Machine
	rec      *reconciler.Reconciler
	seats    *seatmap.Map
	layout   model.Layout
	cities   model.Cities
	pending  map[model.SeatID]reservation.Op
	fetchGen map[string]uint64
	busy     map[string]bool
	booking  bool
	files    []string
	retry    func()
	last     *Notification
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = l } }

// WithUploader enables attachment uploads after booking.
func WithUploader(u Uploader) Option { return func(s *Session) { s.uploader = u } }

// New returns a session using catalog for reference data and reserver for
// seat operations.
func New(catalog Catalog, reserver Reserver, opts ...Option) *Session {
	s := &Session{
		catalog:   catalog,
		reserver:  reserver,
		log:       zap.NewNop(),
		actions:   make(chan func(), 64),
		results:   make(chan reservation.Result, 16),
		snapshots: make(chan model.SeatUpdate, 16),
		notes:     make(chan Notification, 32),
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		wf:        workflow.New(),
		pending:   make(map[model.SeatID]reservation.Op),
		fetchGen:  make(map[string]uint64),
		busy:      make(map[string]bool),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.rec = reconciler.New(s.log.Named("reconciler"))
	return s
}

// Snapshots is where broadcast updates are delivered.
func (s *Session) Snapshots() chan<- model.SeatUpdate { return s.snapshots }

// Notifications delivers user-facing messages.  When nobody reads them
// the oldest undelivered messages are kept and newer ones are dropped; the
// latest is always visible in View.Last.
func (s *Session) Notifications() <-chan Notification { return s.notes }

// Changed receives a value after the state may have changed.
func (s *Session) Changed() <-chan struct{} { return s.changed }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run processes events until ctx is cancelled.  It must be called once.
func (s *Session) Run(ctx context.Context) error {
	defer s.closeOnce.Do(func() { close(s.done) })
	s.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.actions:
			fn()
		case r := <-s.results:
			s.handleResult(r)
		case u := <-s.snapshots:
			s.handleUpdate(u)
		}
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}
}

// View returns a copy of the current state.
func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !s.post(func() { reply <- s.view() }) {
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrClosed
	}
}

func (s *Session) view() View {
	v := View{
		Workflow: s.wf.State(),
		Cities:   s.cities,
		Busy:     s.booking,
		Booking:  s.booking,
		Last:     s.last,
		CanRetry: s.retry != nil,
	}
	for _, b := range s.busy {
		v.Busy = v.Busy || b
	}
	if s.seats != nil {
		v.TripID = s.seats.TripID()
		v.Layout = s.layout
		v.Seats = s.seats.Statuses(s.layout)
		v.Free = s.seats.CountAvailable(s.layout)
		v.Selection = s.seats.Selection()
		v.Pending = make(map[model.SeatID]bool, len(s.pending))
		for id := range s.pending {
			v.Pending[id] = true
		}
	}
	return v
}

// post queues fn on the loop.  It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case s.actions <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) deliver(r reservation.Result) {
	select {
	case s.results <- r:
	case <-s.done:
	}
}

func (s *Session) notify(n Notification) {
	s.last = &n
	switch n.Kind {
	case Info:
		s.log.Debug("notify", zap.String("kind", n.Kind.String()), zap.String("message", n.Message))
	case Conflict:
		s.log.Warn("notify", zap.String("kind", n.Kind.String()), zap.String("seat_id", string(n.SeatID)), zap.String("message", n.Message))
	default:
		s.log.Info("notify", zap.String("kind", n.Kind.String()), zap.String("reason", n.Reason), zap.String("message", n.Message))
	}
	select {
	case s.notes <- n:
	default:
		s.log.Debug("notification dropped", zap.String("message", n.Message))
	}
}

// fetch runs work off the loop and applies its result on the loop.  Only
// the newest fetch per slot is applied; starting another fetch in the same
// slot, or invalidating the slot, discards an older completion.
func (s *Session) fetch(slot string, work func(ctx context.Context) (apply func(), err error)) {
	s.fetchGen[slot]++
	gen := s.fetchGen[slot]
	s.busy[slot] = true
	ctx := s.ctx
	go func() {
		apply, err := work(ctx)
		s.post(func() {
			if s.fetchGen[slot] != gen {
				s.log.Debug("discard stale fetch", zap.String("slot", slot))
				return
			}
			s.busy[slot] = false
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.retry = func() { s.fetch(slot, work) }
				s.notify(Notification{Kind: Transport, Reason: reservation.Reason(err), Message: "Could not load data: " + err.Error() + ". Press r to retry."})
				return
			}
			apply()
		})
	}()
}

func (s *Session) invalidate(slots ...string) {
	for _, slot := range slots {
		s.fetchGen[slot]++
		s.busy[slot] = false
	}
}
