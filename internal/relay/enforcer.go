package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room-relay-backend/internal/join"
	"room-relay-backend/internal/models"
	"room-relay-backend/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// RoomStore is the part of the room store the relay core needs.
type RoomStore interface {
	FindRoom(ctx context.Context, id string) (*models.Room, error)
	UpdateRoomJoin(ctx context.Context, id string, join models.JoinCredential) (int64, error)
	UpdateRoomExpiry(ctx context.Context, id string, expiresAt time.Time) (int64, error)
}

// Enforcer rotates join credentials and evicts guests of expired rooms.
type Enforcer struct {
	store    RoomStore
	registry *Registry
	ttl      time.Duration
	now      func() time.Time

	// collapses concurrent forced expiries of the same room into one rotation
	inflight singleflight.Group
}

func NewEnforcer(store RoomStore, registry *Registry, ttl time.Duration) *Enforcer {
	return &Enforcer{
		store:    store,
		registry: registry,
		ttl:      ttl,
		now:      time.Now,
	}
}

// ForceExpire evicts the room's guest with a ROOM_EXPIRED notice, rotates the
// join credential and broadcasts presence. It returns the new credential, or
// repository.ErrRoomNotFound if the room no longer exists; the eviction and
// broadcast happen either way.
func (e *Enforcer) ForceExpire(ctx context.Context, roomID string) (models.JoinCredential, error) {
	ctx = context.WithoutCancel(ctx)
	v, err, _ := e.inflight.Do(roomID, func() (any, error) {
		return e.forceExpire(ctx, roomID)
	})
	cred, _ := v.(models.JoinCredential)
	return cred, err
}

func (e *Enforcer) forceExpire(ctx context.Context, roomID string) (models.JoinCredential, error) {
	if guest := e.registry.TakeGuest(roomID); guest != nil {
		logSendError(guest.Send(systemMessage(ReasonRoomExpired)), roomID, ReasonRoomExpired)
		_ = guest.Close()
		logrus.WithField("room_id", roomID).Info("Evicted guest from expired room")
	}

	cred, err := e.Rotate(ctx, roomID)
	e.registry.BroadcastPresence(roomID)
	return cred, err
}

// Rotate replaces the join credential with a fresh key valid for the
// configured TTL, in a single store update.
func (e *Enforcer) Rotate(ctx context.Context, roomID string) (models.JoinCredential, error) {
	cred, err := join.NewCredential(e.now(), e.ttl)
	if err != nil {
		return models.JoinCredential{}, err
	}

	matched, err := e.store.UpdateRoomJoin(ctx, roomID, cred)
	if err != nil {
		return models.JoinCredential{}, fmt.Errorf("failed to rotate join credential: %w", err)
	}
	if matched == 0 {
		return models.JoinCredential{}, repository.ErrRoomNotFound
	}

	logrus.WithFields(logrus.Fields{"room_id": roomID, "expires_at": cred.ExpiresAt}).Info("Rotated join credential")
	return cred, nil
}

// SetExpiry moves the room's join expiry to expiresAt, keeping the key. An
// expiry at or before now is a forced expiry instead, which issues a new key
// and a full TTL window.
func (e *Enforcer) SetExpiry(ctx context.Context, roomID string, expiresAt time.Time) (models.JoinCredential, error) {
	if !expiresAt.After(e.now()) {
		return e.ForceExpire(ctx, roomID)
	}

	expiresAt = expiresAt.UTC()
	matched, err := e.store.UpdateRoomExpiry(ctx, roomID, expiresAt)
	if err != nil {
		return models.JoinCredential{}, fmt.Errorf("failed to update join expiry: %w", err)
	}
	if matched == 0 {
		return models.JoinCredential{}, repository.ErrRoomNotFound
	}
	return models.JoinCredential{ExpiresAt: &expiresAt}, nil
}

// Sweep force expires every room with live connections whose join has
// expired or been revoked. It returns the number of rooms expired.
func (e *Enforcer) Sweep(ctx context.Context) int {
	expired := 0
	for _, roomID := range e.registry.ActiveRooms() {
		if ctx.Err() != nil {
			return expired
		}
		valid, err := e.JoinStillValid(ctx, roomID)
		if err != nil {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Expiry sweep could not load room")
			continue
		}
		if valid {
			continue
		}
		if _, err := e.ForceExpire(ctx, roomID); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Expiry sweep failed to rotate room")
			continue
		}
		expired++
	}
	return expired
}

// JoinStillValid runs the expiry sub-check against the stored room. A
// missing room or a room without a join section counts as expired; store
// errors are returned so callers can retry instead of evicting.
func (e *Enforcer) JoinStillValid(ctx context.Context, roomID string) (bool, error) {
	room, err := e.store.FindRoom(ctx, roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !room.Join.Joinable() {
		return false, nil
	}
	return join.CheckExpiry(room.Join, e.now()) == nil, nil
}
