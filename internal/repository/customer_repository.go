package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// CustomerRecord mirrors the customers table.  The national id is only
// ever stored as a bcrypt hash.
type CustomerRecord struct {
	ID             uint64
	Name           string
	Phone          string
	Email          string
	NationalIDHash string
	CreatedAt      time.Time
}

// CustomerRepo provides access to the customers table.  Customers are
// keyed by phone number; the first booking made with a phone number
// creates the row and later bookings reuse it.
type CustomerRepo struct {
	db *sql.DB
}

// NewCustomerRepo returns a new CustomerRepo bound to the given database.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// UpsertByPhoneTx inserts the customer unless a row with the same phone
// already exists and returns the id of the row either way.  Existing rows
// are left untouched.
func (r *CustomerRepo) UpsertByPhoneTx(ctx context.Context, tx *sql.Tx, c *CustomerRecord) error {
	c.Phone = strings.TrimSpace(c.Phone)
	_, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO customers (name, phone, email, national_id_hash) VALUES (?, ?, ?, ?)`,
		c.Name, c.Phone, nullString(c.Email), c.NationalIDHash)
	if err != nil {
		return err
	}
	return tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM customers WHERE phone = ? LIMIT 1`, c.Phone).
		Scan(&c.ID, &c.CreatedAt)
}
