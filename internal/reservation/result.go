package reservation

import (
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
)

// Op names a reservation operation.
type Op int

const (
	OpSelect Op = iota + 1
	OpUnselect
	OpBook
)

func (o Op) String() string {
	switch o {
	case OpSelect:
		return "select"
	case OpUnselect:
		return "unselect"
	case OpBook:
		return "book"
	}
	return "unknown"
}

// Result is the completion of one operation, delivered to the session loop.
type Result struct {
	Op      Op
	TripID  string
	SeatIDs []model.SeatID
	Ack     Ack
	Err     error
}

// Apply mutates m according to the result.  Nothing happens when the
// operation failed or when m is bound to another trip; applied reports
// whether the result belonged to m.  The returned changes are conflicts
// discovered while applying a select.
func (r Result) Apply(m *seatmap.Map) (changes []seatmap.Change, applied bool) {
	if m == nil || m.TripID() != r.TripID {
		return nil, false
	}
	if r.Err != nil {
		return nil, true
	}
	switch r.Op {
	case OpSelect:
		for _, id := range r.SeatIDs {
			changes = append(changes, m.Hold(id, r.Ack.Stamp)...)
		}
	case OpUnselect:
		for _, id := range r.SeatIDs {
			m.Release(id, r.Ack.Stamp)
		}
	case OpBook:
		m.MarkBooked(r.SeatIDs, r.Ack.Stamp)
	}
	return changes, true
}
