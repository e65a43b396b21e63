package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room-relay-backend/internal/join"
	"room-relay-backend/internal/models"
	"room-relay-backend/internal/repository"
	"room-relay-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// GuestService runs the guest identity flows. Both require a join key that
// the join validator admits.
type GuestService struct {
	store RoomStore
	audit AuditLogger
	now   func() time.Time
}

func NewGuestService(store RoomStore, audit AuditLogger) *GuestService {
	return &GuestService{
		store: store,
		audit: audit,
		now:   time.Now,
	}
}

type GuestCredentials struct {
	RoomID  string
	JoinKey string
	Name    string
	PIN     string
}

// Setup records the guest's name and PIN. Only the first setup for a room
// succeeds.
func (s *GuestService) Setup(ctx context.Context, creds GuestCredentials) error {
	room, err := s.admit(ctx, creds.RoomID, creds.JoinKey)
	if err != nil {
		return err
	}
	if room.HasGuest() {
		return ErrGuestExists
	}

	hash, err := utils.HashPassword(creds.PIN)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}

	// the conditional write decides races between concurrent setups
	created, err := s.store.CreateRoomGuest(ctx, creds.RoomID, models.GuestIdentity{Name: creds.Name, PINHash: hash})
	if err != nil {
		return fmt.Errorf("failed to save guest: %w", err)
	}
	if created == 0 {
		return ErrGuestExists
	}

	logAudit(ctx, s.audit, creds.RoomID, "guest_setup", fmt.Sprintf("Guest %s set up", creds.Name))
	return nil
}

// Verify checks the guest's name and PIN
func (s *GuestService) Verify(ctx context.Context, creds GuestCredentials) error {
	room, err := s.admit(ctx, creds.RoomID, creds.JoinKey)
	if err != nil {
		return err
	}
	if !room.HasGuest() {
		return ErrGuestNotFound
	}

	if room.GuestName != creds.Name || !utils.ComparePassword(room.GuestPINHash, creds.PIN) {
		logrus.WithField("room_id", creds.RoomID).Info("Guest verification failed")
		return ErrWrongPIN
	}
	return nil
}

func (s *GuestService) admit(ctx context.Context, roomID, key string) (*models.Room, error) {
	room, err := s.store.FindRoom(ctx, roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if err := join.Validate(room, key, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJoinDenied, err)
	}
	return room, nil
}
