package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"room-relay-backend/internal/models"
	"room-relay-backend/internal/relay"
	"room-relay-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRoomStore struct {
	mock.Mock
}

func (m *mockRoomStore) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	args := m.Called(ctx, id)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *mockRoomStore) UpdateRoomJoin(ctx context.Context, id string, join models.JoinCredential) (int64, error) {
	args := m.Called(ctx, id, join)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRoomStore) UpdateRoomExpiry(ctx context.Context, id string, expiresAt time.Time) (int64, error) {
	args := m.Called(ctx, id, expiresAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRoomStore) CreateRoom(ctx context.Context, room *models.Room) error {
	return m.Called(ctx, room).Error(0)
}

func (m *mockRoomStore) RevokeRoomJoin(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRoomStore) CreateRoomGuest(ctx context.Context, id string, guest models.GuestIdentity) (int64, error) {
	args := m.Called(ctx, id, guest)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRoomStore) ReplaceRoomGuest(ctx context.Context, id string, guest models.GuestIdentity) (int64, error) {
	args := m.Called(ctx, id, guest)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRoomStore) DeleteRoom(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// recordingConn is a relay.Conn that remembers what it was sent
type recordingConn struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

func (c *recordingConn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingConn) SendRaw(data []byte) error {
	return c.Send(string(data))
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type roomFixture struct {
	svc      *RoomService
	store    *repository.MemoryRoomRepository
	registry *relay.Registry
	audit    *repository.MemoryAuditRepository
}

func newRoomFixture() *roomFixture {
	store := repository.NewMemoryRoomRepo()
	registry := relay.NewRegistry()
	enforcer := relay.NewEnforcer(store, registry, 24*time.Hour)
	audit := repository.NewMemoryAuditRepo()
	return &roomFixture{
		svc:      NewRoomService(store, registry, enforcer, audit, 24*time.Hour),
		store:    store,
		registry: registry,
		audit:    audit,
	}
}

func auditActions(audit *repository.MemoryAuditRepository) []string {
	var actions []string
	for _, entry := range audit.Entries() {
		actions = append(actions, entry.Action)
	}
	return actions
}

func TestRoomService_CreateRoom(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()

	resp, err := f.svc.CreateRoom(ctx)
	require.NoError(t, err)
	assert.Len(t, resp.RoomID, 36)
	assert.NotEmpty(t, resp.JoinKey)
	require.NotNil(t, resp.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *resp.ExpiresAt, 5*time.Second)

	room, err := f.store.FindRoom(ctx, resp.RoomID)
	require.NoError(t, err)
	assert.Equal(t, resp.JoinKey, room.Join.Key)
	assert.False(t, room.Join.Revoked)
	assert.Equal(t, []string{"room_create"}, auditActions(f.audit))
}

func TestRoomService_GetRoomIncludesPresence(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, f.registry.Attach(created.RoomID, relay.RoleOwner, &recordingConn{}))

	view, err := f.svc.GetRoom(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, created.JoinKey, view.JoinKey)
	assert.Equal(t, PresenceView{Owner: true, Guest: false}, view.Presence)

	_, err = f.svc.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_DeleteRoomTearsDownConnections(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRoom(ctx)
	require.NoError(t, err)

	owner, guest := &recordingConn{}, &recordingConn{}
	require.NoError(t, f.registry.Attach(created.RoomID, relay.RoleOwner, owner))
	require.NoError(t, f.registry.Attach(created.RoomID, relay.RoleGuest, guest))

	require.NoError(t, f.svc.DeleteRoom(ctx, created.RoomID))

	for _, conn := range []*recordingConn{owner, guest} {
		assert.True(t, conn.isClosed())
		assert.Equal(t, []any{relay.System{Type: relay.TypeSystem, Reason: relay.ReasonRoomDeleted}}, conn.sent)
	}
	assert.Empty(t, f.registry.ActiveRooms())

	_, err = f.store.FindRoom(ctx, created.RoomID)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, created.RoomID), ErrRoomNotFound)
}

func TestRoomService_ExpireNowRotatesEveryCall(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRoom(ctx)
	require.NoError(t, err)

	first, err := f.svc.ExpireNow(ctx, created.RoomID)
	require.NoError(t, err)
	second, err := f.svc.ExpireNow(ctx, created.RoomID)
	require.NoError(t, err)

	assert.NotEqual(t, created.JoinKey, first.JoinKey)
	assert.NotEqual(t, first.JoinKey, second.JoinKey)
	require.NotNil(t, second.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *second.ExpiresAt, 5*time.Second)

	room, err := f.store.FindRoom(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, second.JoinKey, room.Join.Key)
}

func TestRoomService_ExpireNowMissingRoom(t *testing.T) {
	f := newRoomFixture()
	_, err := f.svc.ExpireNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_SetExpiryRejectsOutOfRangeHoursWithoutWriting(t *testing.T) {
	store := new(mockRoomStore)
	registry := relay.NewRegistry()
	svc := NewRoomService(store, registry, relay.NewEnforcer(store, registry, 24*time.Hour), nil, 24*time.Hour)

	for _, hours := range []float64{-1, 0, math.NaN(), 3e6, math.Inf(1)} {
		_, err := svc.SetExpiry(context.Background(), "room", hours)
		assert.ErrorIs(t, err, ErrInvalidExpiry)
	}

	// no expectations were set, so any store call would have panicked
	store.AssertNotCalled(t, "UpdateRoomExpiry", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpdateRoomJoin", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestRoomService_SetExpiryLongWindowExtends(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRoom(ctx)
	require.NoError(t, err)

	resp, err := f.svc.SetExpiry(ctx, created.RoomID, 2e6)
	require.NoError(t, err)
	assert.Empty(t, resp.JoinKey)
	require.NotNil(t, resp.ExpiresAt)
	assert.True(t, resp.ExpiresAt.After(time.Now().Add(100*365*24*time.Hour)))

	room, err := f.store.FindRoom(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, created.JoinKey, room.Join.Key)
}

func TestRoomService_SetExpiryMovesExpiryOnly(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRoom(ctx)
	require.NoError(t, err)

	resp, err := f.svc.SetExpiry(ctx, created.RoomID, 2)
	require.NoError(t, err)
	assert.Empty(t, resp.JoinKey)
	require.NotNil(t, resp.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *resp.ExpiresAt, 5*time.Second)

	room, err := f.store.FindRoom(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, created.JoinKey, room.Join.Key)
	assert.Contains(t, auditActions(f.audit), "join_set_expiry")
}

func TestRoomService_SetExpiryMissingRoom(t *testing.T) {
	f := newRoomFixture()
	_, err := f.svc.SetExpiry(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_RevokeJoin(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRoom(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeJoin(ctx, created.RoomID))
	room, err := f.store.FindRoom(ctx, created.RoomID)
	require.NoError(t, err)
	assert.True(t, room.Join.Revoked)

	assert.ErrorIs(t, f.svc.RevokeJoin(ctx, "missing"), ErrRoomNotFound)
}

func TestRoomService_AuditFailureDoesNotFailAction(t *testing.T) {
	store := repository.NewMemoryRoomRepo()
	registry := relay.NewRegistry()
	audit := new(mockAudit)
	audit.On("CreateAuditLog", mock.Anything, mock.Anything, "room_create", mock.Anything).Return(assert.AnError)
	svc := NewRoomService(store, registry, relay.NewEnforcer(store, registry, time.Hour), audit, time.Hour)

	_, err := svc.CreateRoom(context.Background())
	assert.NoError(t, err)
	audit.AssertExpectations(t)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, roomID, action, details string) error {
	return m.Called(ctx, roomID, action, details).Error(0)
}
