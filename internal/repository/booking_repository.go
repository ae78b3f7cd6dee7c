package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// BookingRepo persists bookings, their seats and their attachments.
// Seats are stored in booking_seats with a unique (trip_id, seat_id)
// key, so the database rejects a second sale of the same seat even if
// the in-memory store were bypassed.
type BookingRepo struct {
	db        *sql.DB
	customers *CustomerRepo
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db, customers: NewCustomerRepo(db)}
}

// BookingRecord mirrors the bookings table.
type BookingRecord struct {
	ID         string
	TripID     string
	CustomerID uint64
	SessionID  string
	TotalPrice int64
	Status     string
	CreatedAt  time.Time
}

// BookingStatusConfirmed is the only status written today.
const BookingStatusConfirmed = "confirmed"

// CreateTx inserts a booking row inside tx.  A duplicate id yields
// ErrConflict.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *BookingRecord) error {
	if b.Status == "" {
		b.Status = BookingStatusConfirmed
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (id, trip_id, customer_id, session_id, total_price, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TripID, b.CustomerID, b.SessionID, b.TotalPrice, b.Status, b.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// CreateSeatsBulkTx inserts one booking_seats row per seat in a single
// statement.  Passing an empty slice has no effect.
func (r *BookingRepo) CreateSeatsBulkTx(ctx context.Context, tx *sql.Tx, bookingID, tripID string, seats []model.SeatID) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, trip_id, seat_id) VALUES `
	args := make([]interface{}, 0, len(seats)*3)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, bookingID, tripID, string(s))
	}
	_, err := tx.ExecContext(ctx, query, args...)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Save writes the customer, the booking and its seats in one transaction.
// nationalIDHash replaces the clear national id, which is never stored.
func (r *BookingRepo) Save(ctx context.Context, b model.Booking, nationalIDHash string) error {
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
	cust := CustomerRecord{
		Name:           b.Customer.Name,
		Phone:          b.Customer.Phone,
		Email:          b.Customer.Email,
		NationalIDHash: nationalIDHash,
	}
	if err := r.customers.UpsertByPhoneTx(ctx, tx, &cust); err != nil {
		return err
	}
	rec := BookingRecord{
		ID:         b.ID,
		TripID:     b.TripID,
		CustomerID: cust.ID,
		SessionID:  b.SessionID,
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
	}
	if err := r.CreateTx(ctx, tx, &rec); err != nil {
		return err
	}
	if err := r.CreateSeatsBulkTx(ctx, tx, b.ID, b.TripID, b.SeatIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads a booking with its customer and seats.  The customer's
// national id is not returned.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (model.Booking, error) {
	var (
		b     model.Booking
		email sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT b.id, b.trip_id, b.session_id, b.total_price, b.created_at, c.name, c.phone, c.email
		 FROM bookings b JOIN customers c ON c.id = b.customer_id
		 WHERE b.id = ? LIMIT 1`, id).
		Scan(&b.ID, &b.TripID, &b.SessionID, &b.TotalPrice, &b.CreatedAt, &b.Customer.Name, &b.Customer.Phone, &email)
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	b.Customer.Email = email.String
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY id`, id)
	if err != nil {
		return model.Booking{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return model.Booking{}, err
		}
		b.SeatIDs = append(b.SeatIDs, model.SeatID(seat))
	}
	return b, rows.Err()
}

// Exists reports whether a booking with the given id has been stored.
func (r *BookingRepo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AddFile records an uploaded attachment for a booking.
func (r *BookingRepo) AddFile(ctx context.Context, bookingID, filename string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO booking_files (booking_id, filename) VALUES (?, ?)`, bookingID, filename)
	return err
}
