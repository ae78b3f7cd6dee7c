// Package utils provides session tokens, hashing and id generation.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails parsing,
// signature verification or expiry checks.
var ErrInvalidToken = errors.New("invalid session token")

// SessionToken is a signed HS256 JWT naming a booking session.  The
// session id is the owner of every seat hold made with the token.
type SessionToken struct {
	SessionID string
	Token     string
	Exp       time.Time
}

// NewSessionToken creates a session id and signs a token for it that
// expires after ttl.
func NewSessionToken(secret string, ttl time.Duration) (SessionToken, error) {
	return signSession(secret, NewSessionID(), time.Now().UTC(), ttl)
}

func signSession(secret, sessionID string, now time.Time, ttl time.Duration) (SessionToken, error) {
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{SessionID: sessionID, Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw and returns its session id.
func ParseSessionToken(secret, raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
