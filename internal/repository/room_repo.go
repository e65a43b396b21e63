package repository

import (
	"context"
	"errors"
	"time"

	"room-relay-backend/internal/models"

	"gorm.io/gorm"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepo(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindRoom retrieves a room by ID
func (r *RoomRepository) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// CreateRoom creates a new room
func (r *RoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// UpdateRoomJoin replaces the join credential in a single UPDATE and returns
// the number of matched rows.
func (r *RoomRepository) UpdateRoomJoin(ctx context.Context, id string, join models.JoinCredential) (int64, error) {
	return r.update(ctx, id, map[string]any{
		"join_key":        join.Key,
		"join_expires_at": join.ExpiresAt,
		"join_revoked":    join.Revoked,
	})
}

// UpdateRoomExpiry moves the join expiry and clears the revoked flag,
// leaving the key untouched.
func (r *RoomRepository) UpdateRoomExpiry(ctx context.Context, id string, expiresAt time.Time) (int64, error) {
	return r.update(ctx, id, map[string]any{
		"join_expires_at": expiresAt,
		"join_revoked":    false,
	})
}

// RevokeRoomJoin marks the join credential as revoked
func (r *RoomRepository) RevokeRoomJoin(ctx context.Context, id string) (int64, error) {
	return r.update(ctx, id, map[string]any{"join_revoked": true})
}

// CreateRoomGuest writes the guest identity only if none exists yet.
// Zero matched rows means the room is missing or already has a guest.
func (r *RoomRepository) CreateRoomGuest(ctx context.Context, id string, guest models.GuestIdentity) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND (guest_pin_hash IS NULL OR guest_pin_hash = '')", id).
		Updates(map[string]any{
			"guest_name":     guest.Name,
			"guest_pin_hash": guest.PINHash,
		})
	return res.RowsAffected, res.Error
}

// ReplaceRoomGuest overwrites the guest identity
func (r *RoomRepository) ReplaceRoomGuest(ctx context.Context, id string, guest models.GuestIdentity) (int64, error) {
	return r.update(ctx, id, map[string]any{
		"guest_name":     guest.Name,
		"guest_pin_hash": guest.PINHash,
	})
}

// DeleteRoom hard deletes a room
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Room{})
	return res.RowsAffected, res.Error
}

// update relies on clientFoundRows in the DSN so RowsAffected counts
// matched rows rather than changed ones.
func (r *RoomRepository) update(ctx context.Context, id string, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", id).
		Updates(fields)
	return res.RowsAffected, res.Error
}
