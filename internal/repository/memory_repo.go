package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"room-relay-backend/internal/models"
)

// MemoryRoomRepository keeps rooms in process memory. Each method holds the
// lock for the whole read or write, giving the same per-document atomicity
// as the SQL repository.
type MemoryRoomRepository struct {
	mu    sync.Mutex
	rooms map[string]models.Room
}

func NewMemoryRoomRepo() *MemoryRoomRepository {
	return &MemoryRoomRepository{rooms: make(map[string]models.Room)}
}

func (r *MemoryRoomRepository) FindRoom(_ context.Context, id string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	room.Join.ExpiresAt = copyTime(room.Join.ExpiresAt)
	return &room, nil
}

func (r *MemoryRoomRepository) CreateRoom(_ context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; exists {
		return fmt.Errorf("duplicate room id %s", room.ID)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	stored := *room
	stored.Join.ExpiresAt = copyTime(room.Join.ExpiresAt)
	r.rooms[room.ID] = stored
	return nil
}

func (r *MemoryRoomRepository) UpdateRoomJoin(_ context.Context, id string, join models.JoinCredential) (int64, error) {
	return r.mutate(id, func(room *models.Room) bool {
		room.Join = models.JoinCredential{
			Key:       join.Key,
			ExpiresAt: copyTime(join.ExpiresAt),
			Revoked:   join.Revoked,
		}
		return true
	}), nil
}

func (r *MemoryRoomRepository) UpdateRoomExpiry(_ context.Context, id string, expiresAt time.Time) (int64, error) {
	return r.mutate(id, func(room *models.Room) bool {
		room.Join.ExpiresAt = &expiresAt
		room.Join.Revoked = false
		return true
	}), nil
}

func (r *MemoryRoomRepository) RevokeRoomJoin(_ context.Context, id string) (int64, error) {
	return r.mutate(id, func(room *models.Room) bool {
		room.Join.Revoked = true
		return true
	}), nil
}

func (r *MemoryRoomRepository) CreateRoomGuest(_ context.Context, id string, guest models.GuestIdentity) (int64, error) {
	return r.mutate(id, func(room *models.Room) bool {
		if room.HasGuest() {
			return false
		}
		room.GuestName = guest.Name
		room.GuestPINHash = guest.PINHash
		return true
	}), nil
}

func (r *MemoryRoomRepository) ReplaceRoomGuest(_ context.Context, id string, guest models.GuestIdentity) (int64, error) {
	return r.mutate(id, func(room *models.Room) bool {
		room.GuestName = guest.Name
		room.GuestPINHash = guest.PINHash
		return true
	}), nil
}

func (r *MemoryRoomRepository) DeleteRoom(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return 0, nil
	}
	delete(r.rooms, id)
	return 1, nil
}

// mutate applies fn to the stored room and reports one matched row when fn
// accepts the change.
func (r *MemoryRoomRepository) mutate(id string, fn func(room *models.Room) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok || !fn(&room) {
		return 0
	}
	r.rooms[id] = room
	return 1
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MemoryAuditRepository keeps audit entries in memory.
type MemoryAuditRepository struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func NewMemoryAuditRepo() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) CreateAuditLog(_ context.Context, roomID, action, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, models.AuditLog{
		ID:        uint(len(r.entries) + 1),
		RoomID:    roomID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Entries returns a copy of the recorded audit entries
func (r *MemoryAuditRepository) Entries() []models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}

// MemoryAuthRepository holds the master credential in memory.
type MemoryAuthRepository struct {
	mu   sync.Mutex
	hash string
}

func NewMemoryAuthRepo() *MemoryAuthRepository {
	return &MemoryAuthRepository{}
}

func (r *MemoryAuthRepository) GetMasterHash(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hash == "" {
		return "", ErrCredentialNotSet
	}
	return r.hash, nil
}

func (r *MemoryAuthRepository) SetMasterHash(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hash = hash
	return nil
}
