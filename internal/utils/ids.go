package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewBookingID returns "BK" followed by eight upper-case hex digits.
func NewBookingID() string {
	return "BK" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewSessionID returns a random session identifier.
func NewSessionID() string { return uuid.NewString() }
