package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashNationalID returns a bcrypt hash of a national identity number using
// the given cost.  Surrounding whitespace is ignored.
func HashNationalID(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(plain)), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyNationalID safely compares a bcrypt hash and a national id.
func VerifyNationalID(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(plain))) == nil
}
