package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/seatstore"
)

// SeatStateRepo stores the non-available seats of every trip in the
// trip_seats table.  It implements seatstore.Persister; a trip's rows are
// always replaced as a whole so the table mirrors the in-memory store
// after each flush.
type SeatStateRepo struct {
	db *sql.DB
}

// NewSeatStateRepo returns a SeatStateRepo bound to db.
func NewSeatStateRepo(db *sql.DB) *SeatStateRepo { return &SeatStateRepo{db: db} }

// LoadSeats returns every stored seat state.
func (r *SeatStateRepo) LoadSeats(ctx context.Context) ([]seatstore.SeatState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT trip_id, seat_id, status, held_by, held_at, booking_id, version FROM trip_seats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []seatstore.SeatState
	for rows.Next() {
		var (
			ss        seatstore.SeatState
			seatID    string
			status    string
			heldAt    sql.NullTime
			bookingID sql.NullString
		)
		if err := rows.Scan(&ss.TripID, &seatID, &status, &ss.HeldBy, &heldAt, &bookingID, &ss.Stamp); err != nil {
			return nil, err
		}
		ss.SeatID = model.SeatID(seatID)
		ss.Status = model.SeatStatus(status)
		if heldAt.Valid {
			ss.HeldAt = heldAt.Time.UTC()
		}
		if bookingID.Valid {
			ss.BookingID = bookingID.String
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// SaveTrip replaces the stored seats of tripID with seats inside one
// transaction.  An empty slice clears the trip.
func (r *SeatStateRepo) SaveTrip(ctx context.Context, tripID string, seats []seatstore.SeatState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM trip_seats WHERE trip_id = ?`, tripID); err != nil {
		return err
	}
	if len(seats) > 0 {
		query := `INSERT INTO trip_seats (trip_id, seat_id, status, held_by, held_at, booking_id, version) VALUES `
		args := make([]interface{}, 0, len(seats)*7)
		for i, s := range seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?)"
			args = append(args, tripID, string(s.SeatID), string(s.Status), s.HeldBy,
				nullTime(s.HeldAt), nullString(s.BookingID), s.Stamp)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
