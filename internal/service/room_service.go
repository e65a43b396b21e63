package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"room-relay-backend/internal/join"
	"room-relay-backend/internal/models"
	"room-relay-backend/internal/relay"
	"room-relay-backend/internal/repository"
	"room-relay-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoomStore is the room persistence the services need
type RoomStore interface {
	relay.RoomStore
	CreateRoom(ctx context.Context, room *models.Room) error
	RevokeRoomJoin(ctx context.Context, id string) (int64, error)
	CreateRoomGuest(ctx context.Context, id string, guest models.GuestIdentity) (int64, error)
	ReplaceRoomGuest(ctx context.Context, id string, guest models.GuestIdentity) (int64, error)
	DeleteRoom(ctx context.Context, id string) (int64, error)
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, roomID, action, details string) error
}

type RoomService struct {
	store    RoomStore
	registry *relay.Registry
	enforcer *relay.Enforcer
	audit    AuditLogger
	joinTTL  time.Duration
	now      func() time.Time
}

func NewRoomService(store RoomStore, registry *relay.Registry, enforcer *relay.Enforcer, audit AuditLogger, joinTTL time.Duration) *RoomService {
	return &RoomService{
		store:    store,
		registry: registry,
		enforcer: enforcer,
		audit:    audit,
		joinTTL:  joinTTL,
		now:      time.Now,
	}
}

// JoinResponse carries a room's current join credential
type JoinResponse struct {
	JoinKey   string     `json:"join_key"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
	JoinResponse
}

type ExpiryResponse struct {
	ExpiresAt *time.Time `json:"expires_at"`
	// JoinKey is only set when the requested expiry forced a rotation
	JoinKey string `json:"join_key,omitempty"`
}

type PresenceView struct {
	Owner bool `json:"owner"`
	Guest bool `json:"guest"`
}

type RoomView struct {
	RoomID    string       `json:"room_id"`
	CreatedAt time.Time    `json:"created_at"`
	JoinKey   string       `json:"join_key"`
	ExpiresAt *time.Time   `json:"expires_at"`
	Revoked   bool         `json:"revoked"`
	GuestName string       `json:"guest_name,omitempty"`
	Presence  PresenceView `json:"presence"`
}

// CreateRoom creates a room with a fresh join credential
func (s *RoomService) CreateRoom(ctx context.Context) (*CreateRoomResponse, error) {
	now := s.now()
	cred, err := join.NewCredential(now, s.joinTTL)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Join:      cred,
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	s.logAudit(ctx, room.ID, "room_create", "Room created")

	return &CreateRoomResponse{
		RoomID:       room.ID,
		JoinResponse: JoinResponse{JoinKey: cred.Key, ExpiresAt: cred.ExpiresAt},
	}, nil
}

// GetRoom returns the stored room together with its live presence
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*RoomView, error) {
	room, err := s.store.FindRoom(ctx, roomID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	owner, guest := s.registry.Get(roomID)
	return &RoomView{
		RoomID:    room.ID,
		CreatedAt: room.CreatedAt,
		JoinKey:   room.Join.Key,
		ExpiresAt: room.Join.ExpiresAt,
		Revoked:   room.Join.Revoked,
		GuestName: room.GuestName,
		Presence:  PresenceView{Owner: owner != nil, Guest: guest != nil},
	}, nil
}

// DeleteRoom removes the room and tears down its live connections
func (s *RoomService) DeleteRoom(ctx context.Context, roomID string) error {
	deleted, err := s.store.DeleteRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if deleted == 0 {
		return ErrRoomNotFound
	}

	s.registry.Teardown(roomID, relay.ReasonRoomDeleted)
	s.logAudit(ctx, roomID, "room_delete", "Room deleted")
	return nil
}

// ExpireNow force expires the room: any guest is evicted and a new join
// credential issued.
func (s *RoomService) ExpireNow(ctx context.Context, roomID string) (*JoinResponse, error) {
	cred, err := s.enforcer.ForceExpire(ctx, roomID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logAudit(ctx, roomID, "join_expire", "Join credential expired and rotated")
	return &JoinResponse{JoinKey: cred.Key, ExpiresAt: cred.ExpiresAt}, nil
}

// SetExpiry moves the join expiry to hours from now. Hours must be positive
// and fit a time.Duration; the check happens before anything is written.
func (s *RoomService) SetExpiry(ctx context.Context, roomID string, hours float64) (*ExpiryResponse, error) {
	window := hours * float64(time.Hour)
	if !(window > 0) || window >= math.MaxInt64 {
		return nil, ErrInvalidExpiry
	}

	expiresAt := s.now().Add(time.Duration(window))
	cred, err := s.enforcer.SetExpiry(ctx, roomID, expiresAt)
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logAudit(ctx, roomID, "join_set_expiry", fmt.Sprintf("Join expiry set to %s", cred.ExpiresAt.Format(time.RFC3339)))
	return &ExpiryResponse{ExpiresAt: cred.ExpiresAt, JoinKey: cred.Key}, nil
}

// RevokeJoin marks the join credential revoked. A connected guest is
// evicted on its session's next expiry check.
func (s *RoomService) RevokeJoin(ctx context.Context, roomID string) error {
	matched, err := s.store.RevokeRoomJoin(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to revoke join: %w", err)
	}
	if matched == 0 {
		return ErrRoomNotFound
	}

	s.logAudit(ctx, roomID, "join_revoke", "Join credential revoked")
	return nil
}

// ChangeGuestPIN overwrites the guest identity of a room
func (s *RoomService) ChangeGuestPIN(ctx context.Context, roomID, name, pin string) error {
	hash, err := utils.HashPassword(pin)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}

	matched, err := s.store.ReplaceRoomGuest(ctx, roomID, models.GuestIdentity{Name: name, PINHash: hash})
	if err != nil {
		return fmt.Errorf("failed to update guest: %w", err)
	}
	if matched == 0 {
		return ErrRoomNotFound
	}

	s.logAudit(ctx, roomID, "guest_change_pin", fmt.Sprintf("Guest PIN changed for %s", name))
	return nil
}

func (s *RoomService) logAudit(ctx context.Context, roomID, action, details string) {
	logAudit(ctx, s.audit, roomID, action, details)
}

// logAudit records an admin action. Failures are logged and otherwise
// ignored.
func logAudit(ctx context.Context, audit AuditLogger, roomID, action, details string) {
	if audit == nil {
		return
	}
	if err := audit.CreateAuditLog(ctx, roomID, action, details); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "action": action}).WithError(err).Warn("Failed to write audit log")
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, repository.ErrRoomNotFound) {
		return ErrRoomNotFound
	}
	return err
}
