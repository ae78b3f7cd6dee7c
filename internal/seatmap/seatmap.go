// Package seatmap holds a client's view of one trip's seats: the aggregate
// status reported by the server plus the seats the local session holds.
//
// The local selection is kept apart from the server status because the
// server's snapshots do not say which session holds a seat.  Every seat
// also carries the version stamp of the newest authoritative observation
// applied to it, so that a snapshot built before a confirmed select cannot
// roll the seat back.
//
// A Map is not safe for concurrent use; the session event loop owns it.
package seatmap

import (
	"errors"
	"sort"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Display is the status shown for a seat.
type Display string

const (
	Mine        Display = "mine"
	Available   Display = "available"
	HeldByOther Display = "held"
	Booked      Display = "booked"
)

// ChangeKind classifies a correction applied to the local selection.
type ChangeKind int

const (
	// Conflict: a seat the client believed it held is reported booked.
	Conflict ChangeKind = iota + 1
	// SelectionLost: a seat the client held is reported available again,
	// typically because the server-side hold expired.
	SelectionLost
)

func (k ChangeKind) String() string {
	switch k {
	case Conflict:
		return "conflict"
	case SelectionLost:
		return "selection_lost"
	}
	return "unknown"
}

// Change reports that a seat was removed from the local selection.
type Change struct {
	Kind   ChangeKind
	SeatID model.SeatID
}

// ErrTripMismatch is returned when data for another trip is applied.
var ErrTripMismatch = errors.New("seatmap: trip mismatch")

// Map is the seat map of a single trip.
type Map struct {
	tripID  string
	records map[model.SeatID]model.SeatStatus // only non-available seats
	stamps  map[model.SeatID]int64            // newest observation per seat
	mine    map[model.SeatID]struct{}
	order   []model.SeatID // selection order of mine

	snapshotAt int64
}

// New returns an empty map bound to tripID.  Every seat is available.
func New(tripID string) *Map {
	return &Map{
		tripID:  tripID,
		records: make(map[model.SeatID]model.SeatStatus),
		stamps:  make(map[model.SeatID]int64),
		mine:    make(map[model.SeatID]struct{}),
	}
}

// TripID returns the trip the map is bound to.
func (m *Map) TripID() string { return m.tripID }

// SnapshotStamp returns the timestamp of the newest snapshot applied.
func (m *Map) SnapshotStamp() int64 { return m.snapshotAt }

// ApplySnapshot overlays a full seat map for the trip taken at stamp.
// A snapshot not newer than the last one applied is ignored.  Seats missing
// from records are available.  Seats whose last observation is not older
// than stamp keep their state.
//
// Seats in the local selection are kept when the snapshot reports them
// held.  When it reports them booked (Conflict) or available
// (SelectionLost) they leave the selection and the returned changes list
// them in seat order.
func (m *Map) ApplySnapshot(tripID string, stamp int64, records model.SeatRecords) ([]Change, error) {
	if tripID != m.tripID {
		return nil, ErrTripMismatch
	}
	if stamp <= m.snapshotAt {
		return nil, nil
	}
	seen := make(map[model.SeatID]struct{}, len(records)+len(m.records)+len(m.mine))
	for id := range records {
		seen[id] = struct{}{}
	}
	for id := range m.records {
		seen[id] = struct{}{}
	}
	for id := range m.mine {
		seen[id] = struct{}{}
	}
	ids := make([]model.SeatID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var changes []Change
	for _, id := range ids {
		if m.stamps[id] >= stamp {
			continue
		}
		status := records.StatusOf(id)
		if _, held := m.mine[id]; held {
			switch status {
			case model.StatusBooked:
				m.drop(id)
				changes = append(changes, Change{Kind: Conflict, SeatID: id})
			case model.StatusAvailable:
				m.drop(id)
				changes = append(changes, Change{Kind: SelectionLost, SeatID: id})
			}
		}
		m.set(id, status, stamp)
	}
	m.snapshotAt = stamp
	return changes, nil
}

// SetLocal adds or removes id from the local selection without touching
// the recorded server status.
func (m *Map) SetLocal(id model.SeatID, held bool) {
	if !held {
		m.drop(id)
		return
	}
	if _, ok := m.mine[id]; ok {
		return
	}
	m.mine[id] = struct{}{}
	m.order = append(m.order, id)
}

// Hold records a confirmed select at stamp: the seat joins the selection
// and, unless a newer observation exists, is recorded as held.  If a newer
// observation already shows the seat booked, the seat cannot be ours and a
// Conflict is returned instead.  A newer observation of the seat as
// available means the hold was already released, and SelectionLost is
// returned.  The last snapshot counts as an observation of every seat.
func (m *Map) Hold(id model.SeatID, stamp int64) []Change {
	seen := m.stamps[id]
	if m.snapshotAt > seen {
		seen = m.snapshotAt
	}
	if seen > stamp {
		switch m.records[id] {
		case model.StatusBooked:
			m.drop(id)
			return []Change{{Kind: Conflict, SeatID: id}}
		case model.StatusAvailable, "":
			m.drop(id)
			return []Change{{Kind: SelectionLost, SeatID: id}}
		}
	}
	m.SetLocal(id, true)
	if m.stamps[id] < stamp {
		m.set(id, model.StatusHeld, stamp)
	}
	return nil
}

// Release records a confirmed unselect at stamp.
func (m *Map) Release(id model.SeatID, stamp int64) {
	m.SetLocal(id, false)
	if m.stamps[id] < stamp {
		m.set(id, model.StatusAvailable, stamp)
	}
}

// MarkBooked records a confirmed booking at stamp.  The seats leave the
// selection and become booked.
func (m *Map) MarkBooked(ids []model.SeatID, stamp int64) {
	for _, id := range ids {
		m.drop(id)
		if m.stamps[id] < stamp {
			m.set(id, model.StatusBooked, stamp)
		}
	}
}

// DisplayStatus returns Mine for held-by-me seats, else the recorded status.
func (m *Map) DisplayStatus(id model.SeatID) Display {
	if _, ok := m.mine[id]; ok {
		return Mine
	}
	switch m.records[id] {
	case model.StatusHeld:
		return HeldByOther
	case model.StatusBooked:
		return Booked
	}
	return Available
}

// IsMine reports whether id is in the local selection.
func (m *Map) IsMine(id model.SeatID) bool {
	_, ok := m.mine[id]
	return ok
}

// Selection returns the held seats in the order they were selected.
func (m *Map) Selection() []model.SeatID {
	out := make([]model.SeatID, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of held seats.
func (m *Map) Len() int { return len(m.order) }

// Statuses returns the display status of every seat of layout.
func (m *Map) Statuses(layout model.Layout) map[model.SeatID]Display {
	out := make(map[model.SeatID]Display)
	for _, id := range layout.SeatIDs() {
		out[id] = m.DisplayStatus(id)
	}
	for id := range m.records {
		out[id] = m.DisplayStatus(id)
	}
	for id := range m.mine {
		out[id] = Mine
	}
	return out
}

// CountAvailable returns the number of available seats in layout.
func (m *Map) CountAvailable(layout model.Layout) int {
	n := 0
	for _, id := range layout.SeatIDs() {
		if m.DisplayStatus(id) == Available {
			n++
		}
	}
	return n
}

func (m *Map) set(id model.SeatID, status model.SeatStatus, stamp int64) {
	if status == model.StatusAvailable || !status.Valid() {
		delete(m.records, id)
	} else {
		m.records[id] = status
	}
	m.stamps[id] = stamp
}

func (m *Map) drop(id model.SeatID) {
	if _, ok := m.mine[id]; !ok {
		return
	}
	delete(m.mine, id)
	for i, s := range m.order {
		if s == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
