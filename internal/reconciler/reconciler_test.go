package reconciler

import (
	"testing"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/seatmap"
)

func update(ts int64, trips map[string]model.SeatRecords) model.SeatUpdate {
	return model.SeatUpdate{Type: model.SeatUpdateType, Timestamp: ts, SeatsData: trips}
}

func seats(pairs ...string) model.SeatRecords {
	out := model.SeatRecords{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[model.SeatID(pairs[i])] = model.SeatRecord{Status: model.SeatStatus(pairs[i+1])}
	}
	return out
}

func TestObserve_FiltersActiveTrip(t *testing.T) {
	r := New(nil)
	m := seatmap.New("trip-1")
	out := r.Observe(update(10, map[string]model.SeatRecords{
		"trip-1": seats("T1-A01", "held"),
		"trip-2": seats("T1-A01", "booked"),
	}), m)
	if !out.Applied {
		t.Fatalf("expected snapshot to apply, got %+v", out)
	}
	if got := m.DisplayStatus("T1-A01"); got != seatmap.HeldByOther {
		t.Fatalf("expected held, got %q", got)
	}
	if _, ok := r.Known("trip-2"); !ok {
		t.Fatal("expected trip-2 to be cached")
	}
}

func TestObserve_DiscardsNotNewer(t *testing.T) {
	r := New(nil)
	m := seatmap.New("trip-1")
	r.Observe(update(10, map[string]model.SeatRecords{"trip-1": seats("T1-A01", "booked")}), m)

	out := r.Observe(update(10, map[string]model.SeatRecords{"trip-1": seats()}), m)
	if !out.Stale || out.Applied {
		t.Fatalf("expected equal stamp to be stale, got %+v", out)
	}
	out = r.Observe(update(8, map[string]model.SeatRecords{"trip-1": seats()}), m)
	if !out.Stale {
		t.Fatalf("expected older stamp to be stale, got %+v", out)
	}
	if got := m.DisplayStatus("T1-A01"); got != seatmap.Booked {
		t.Fatalf("expected booked, got %q", got)
	}
}

func TestObserve_ConflictRequestsRefetch(t *testing.T) {
	r := New(nil)
	m := seatmap.New("trip-1")
	m.Hold("T1-A01", 5)
	out := r.Observe(update(10, map[string]model.SeatRecords{"trip-1": seats("T1-A01", "booked")}), m)
	if !out.Refetch || len(out.Changes) != 1 || out.Changes[0].Kind != seatmap.Conflict {
		t.Fatalf("expected conflict with refetch, got %+v", out)
	}
	if m.IsMine("T1-A01") {
		t.Fatal("expected seat to leave the selection")
	}
}

func TestObserve_SelectionLost(t *testing.T) {
	r := New(nil)
	m := seatmap.New("trip-1")
	m.Hold("T2-B10", 5)
	out := r.Observe(update(10, map[string]model.SeatRecords{"trip-1": seats()}), m)
	if out.Refetch {
		t.Fatal("selection lost must not force a refetch")
	}
	if len(out.Changes) != 1 || out.Changes[0] != (seatmap.Change{Kind: seatmap.SelectionLost, SeatID: "T2-B10"}) {
		t.Fatalf("unexpected changes %+v", out.Changes)
	}
	if got := m.DisplayStatus("T2-B10"); got != seatmap.Available {
		t.Fatalf("expected available, got %q", got)
	}
}

func TestObserve_TripAbsentFromUpdate(t *testing.T) {
	r := New(nil)
	m := seatmap.New("trip-1")
	m.Hold("T1-A01", 1)
	out := r.Observe(update(10, map[string]model.SeatRecords{"trip-9": seats()}), m)
	if out.Applied || out.Stale {
		t.Fatalf("expected no effect, got %+v", out)
	}
	if !m.IsMine("T1-A01") {
		t.Fatal("selection must survive an update for other trips")
	}
}

func TestRebind_SeedsFromCache(t *testing.T) {
	r := New(nil)
	old := seatmap.New("trip-1")
	old.Hold("T1-A01", 1)
	r.Observe(update(10, map[string]model.SeatRecords{"trip-2": seats("T1-A03", "booked")}), old)

	m := r.Rebind("trip-2")
	if m.TripID() != "trip-2" || m.Len() != 0 {
		t.Fatalf("unexpected map trip=%s selection=%v", m.TripID(), m.Selection())
	}
	if got := m.DisplayStatus("T1-A03"); got != seatmap.Booked {
		t.Fatalf("expected cached booked seat, got %q", got)
	}
	if m.SnapshotStamp() != 10 {
		t.Fatalf("expected stamp 10, got %d", m.SnapshotStamp())
	}

	empty := r.Rebind("trip-3")
	if got := empty.DisplayStatus("T1-A03"); got != seatmap.Available {
		t.Fatalf("expected empty map, got %q", got)
	}
}

func TestObserveSnapshot_BootstrapAfterBroadcast(t *testing.T) {
	r := New(nil)
	m := seatmap.New("trip-1")
	r.Observe(update(20, map[string]model.SeatRecords{"trip-1": seats("T1-A01", "booked")}), m)

	out := r.ObserveSnapshot(model.TripSnapshot{TripID: "trip-1", Timestamp: 15, Seats: seats()}, m)
	if !out.Stale {
		t.Fatalf("expected older bootstrap fetch to be discarded, got %+v", out)
	}
	if got := m.DisplayStatus("T1-A01"); got != seatmap.Booked {
		t.Fatalf("expected booked, got %q", got)
	}
}

// Two clients race for the same seat; the snapshot that follows keeps the
// winner's seat as its own and shows it held to the loser.
func TestTwoClientsRace(t *testing.T) {
	a, b := seatmap.New("trip-1"), seatmap.New("trip-1")
	ra, rb := New(nil), New(nil)

	a.Hold("T1-A05", 100) // A's select succeeded at stamp 100
	// B's select failed: nothing to apply.

	u := update(150, map[string]model.SeatRecords{"trip-1": seats("T1-A05", "held")})
	ra.Observe(u, a)
	rb.Observe(u, b)

	if got := a.DisplayStatus("T1-A05"); got != seatmap.Mine {
		t.Fatalf("expected A to see mine, got %q", got)
	}
	if got := b.DisplayStatus("T1-A05"); got != seatmap.HeldByOther {
		t.Fatalf("expected B to see held, got %q", got)
	}
}

func TestRemember_Bounded(t *testing.T) {
	r := New(nil)
	r.maxKnown = 2
	r.ObserveSnapshot(model.TripSnapshot{TripID: "a", Timestamp: 1}, nil)
	r.ObserveSnapshot(model.TripSnapshot{TripID: "b", Timestamp: 2}, nil)
	r.ObserveSnapshot(model.TripSnapshot{TripID: "c", Timestamp: 3}, nil)
	if _, ok := r.Known("a"); ok {
		t.Fatal("expected oldest trip to be evicted")
	}
	if _, ok := r.Known("c"); !ok {
		t.Fatal("expected newest trip to be cached")
	}
}
