package model

// SeatUpdateType is the only broadcast message type currently emitted.
const SeatUpdateType = "SEAT_UPDATE"

// SeatUpdate is the broadcast event carrying full seat maps for every trip
// that is currently being watched.  Timestamp is the server's version stamp:
// it is strictly increasing across all seat mutations and a snapshot
// reflects every mutation with a stamp less than or equal to it.
type SeatUpdate struct {
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	SeatsData map[string]SeatRecords `json:"seats_data"`
}

// TripSnapshot is a single trip's seat map at a version stamp.  It is what
// GET /api/seats/:trip_id returns and what a SeatUpdate contains per trip.
type TripSnapshot struct {
	TripID    string      `json:"trip_id"`
	Timestamp int64       `json:"timestamp"`
	Seats     SeatRecords `json:"seats"`
}

// Update wraps the snapshot as a single-trip SeatUpdate.
func (s TripSnapshot) Update() SeatUpdate {
	return SeatUpdate{
		Type:      SeatUpdateType,
		Timestamp: s.Timestamp,
		SeatsData: map[string]SeatRecords{s.TripID: s.Seats},
	}
}
