// Package reconciler merges server seat snapshots into the active seat map.
//
// Snapshots are full replacements stamped with the server's version stamp.
// A snapshot that is not strictly newer than the last one applied to the
// map is dropped.  Every snapshot seen is also remembered per trip so that
// switching to another trip starts from the newest known state.
package reconciler

import (
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
)

// DefaultMaxKnown bounds the per-trip snapshot cache.
const DefaultMaxKnown = 256

// Outcome describes what a snapshot did to the active map.
//
// Fields:
//
//	Applied – the snapshot was merged into the map.
//	Stale   – the snapshot was for the active trip but not newer.
//	Changes – seats that left the local selection.
//	Refetch – a conflict was found and the caller should re-fetch the map.
type Outcome struct {
	Applied bool
	Stale   bool
	Changes []seatmap.Change
	Refetch bool
}

// Reconciler is owned by one session loop and is not safe for concurrent use.
type Reconciler struct {
	known    map[string]model.TripSnapshot
	maxKnown int
	log      *zap.Logger
}

// New returns a reconciler logging to log (nil disables logging).
func New(log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		known:    make(map[string]model.TripSnapshot),
		maxKnown: DefaultMaxKnown,
		log:      log,
	}
}

// Observe handles a broadcast update.  Every trip in it is cached; only
// the trip of m is merged.  m may be nil when no trip is active.
func (r *Reconciler) Observe(u model.SeatUpdate, m *seatmap.Map) Outcome {
	for tripID, seats := range u.SeatsData {
		r.remember(model.TripSnapshot{TripID: tripID, Timestamp: u.Timestamp, Seats: seats})
	}
	if m == nil {
		return Outcome{}
	}
	seats, ok := u.SeatsData[m.TripID()]
	if !ok {
		return Outcome{}
	}
	return r.merge(model.TripSnapshot{TripID: m.TripID(), Timestamp: u.Timestamp, Seats: seats}, m)
}

// ObserveSnapshot handles a single-trip snapshot such as the bootstrap
// fetch.  It follows the same discard rule as broadcasts.
func (r *Reconciler) ObserveSnapshot(s model.TripSnapshot, m *seatmap.Map) Outcome {
	r.remember(s)
	if m == nil || m.TripID() != s.TripID {
		return Outcome{}
	}
	return r.merge(s, m)
}

// Rebind returns a fresh map for tripID seeded with the newest snapshot
// known for it.  The new map has an empty selection.
func (r *Reconciler) Rebind(tripID string) *seatmap.Map {
	m := seatmap.New(tripID)
	if s, ok := r.known[tripID]; ok {
		if _, err := m.ApplySnapshot(tripID, s.Timestamp, s.Seats); err != nil {
			r.log.Warn("seed seat map", zap.String("trip_id", tripID), zap.Error(err))
		}
	}
	return m
}

// Known returns the newest snapshot cached for tripID.
func (r *Reconciler) Known(tripID string) (model.TripSnapshot, bool) {
	s, ok := r.known[tripID]
	return s, ok
}

func (r *Reconciler) merge(s model.TripSnapshot, m *seatmap.Map) Outcome {
	if s.Timestamp <= m.SnapshotStamp() {
		r.log.Debug("discard stale snapshot",
			zap.String("trip_id", s.TripID),
			zap.Int64("timestamp", s.Timestamp),
			zap.Int64("applied", m.SnapshotStamp()),
		)
		return Outcome{Stale: true}
	}
	changes, err := m.ApplySnapshot(s.TripID, s.Timestamp, s.Seats)
	if err != nil {
		return Outcome{}
	}
	out := Outcome{Applied: true, Changes: changes}
	for _, c := range changes {
		if c.Kind == seatmap.Conflict {
			out.Refetch = true
			r.log.Warn("seat booked while held locally", zap.String("trip_id", s.TripID), zap.String("seat_id", string(c.SeatID)))
		}
	}
	return out
}

func (r *Reconciler) remember(s model.TripSnapshot) {
	if cur, ok := r.known[s.TripID]; ok && cur.Timestamp >= s.Timestamp {
		return
	}
	r.known[s.TripID] = s
	if len(r.known) <= r.maxKnown {
		return
	}
	oldest := ""
	var ts int64
	for id, snap := range r.known {
		if oldest == "" || snap.Timestamp < ts {
			oldest, ts = id, snap.Timestamp
		}
	}
	delete(r.known, oldest)
}
