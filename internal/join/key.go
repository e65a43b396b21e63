package join

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"room-relay-backend/internal/models"
)

const keyBytes = 32

// NewKey generates an unguessable join key from 32 random bytes
func NewKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewCredential returns a fresh, unrevoked credential expiring ttl after now
func NewCredential(now time.Time, ttl time.Duration) (models.JoinCredential, error) {
	key, err := NewKey()
	if err != nil {
		return models.JoinCredential{}, err
	}
	expiresAt := now.Add(ttl).UTC()
	return models.JoinCredential{
		Key:       key,
		ExpiresAt: &expiresAt,
		Revoked:   false,
	}, nil
}
