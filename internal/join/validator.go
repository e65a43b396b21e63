// Package join decides whether a presented key admits a connection to a room.
package join

import (
	"crypto/subtle"
	"errors"
	"time"

	"room-relay-backend/internal/models"
)

// Denial reasons. Each error's text is the wire reason code.
var (
	ErrNotJoinable      = errors.New("NOT_JOINABLE")
	ErrInvalidOrExpired = errors.New("INVALID_OR_EXPIRED")
	ErrExpired          = errors.New("EXPIRED")
)

// Validate admits key for room at now, returning nil on admission or one of
// the denial errors. It has no side effects and is safe for concurrent use.
func Validate(room *models.Room, key string, now time.Time) error {
	if room == nil || !room.Join.Joinable() {
		return ErrNotJoinable
	}
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(room.Join.Key)) != 1 {
		return ErrInvalidOrExpired
	}
	return CheckExpiry(room.Join, now)
}

// CheckExpiry is the mid-session sub-check: only the expiry timestamp and
// the revoked flag are consulted.
func CheckExpiry(cred models.JoinCredential, now time.Time) error {
	if cred.ExpiresAt != nil && cred.ExpiresAt.Before(now) {
		return ErrExpired
	}
	if cred.Revoked {
		return ErrExpired
	}
	return nil
}

// IsDenial reports whether err is one of the join denial errors.
func IsDenial(err error) bool {
	return errors.Is(err, ErrNotJoinable) ||
		errors.Is(err, ErrInvalidOrExpired) ||
		errors.Is(err, ErrExpired)
}
