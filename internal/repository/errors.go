// Package repository holds the MySQL persistence for seat states,
// bookings and customers.  Sentinel errors below let handlers tell
// failure scenarios apart without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing row,
// for example a booking id that is already taken.
var ErrConflict = errors.New("conflict")

// isDuplicate reports whether err is a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "1062")
}
