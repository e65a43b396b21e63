package relay

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records everything sent to it. It stands in for a websocket peer.
type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	sendErr error
}

func (c *fakeConn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

func (c *fakeConn) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPeerGone
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.sent))
	for _, data := range c.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		out = append(out, m)
	}
	return out
}

func TestRegistry_AttachRejectsOccupiedSlot(t *testing.T) {
	reg := NewRegistry()
	first, second := &fakeConn{}, &fakeConn{}

	require.NoError(t, reg.Attach("room", RoleGuest, first))
	assert.ErrorIs(t, reg.Attach("room", RoleGuest, second), ErrSlotOccupied)

	_, guest := reg.Get("room")
	assert.Same(t, first, guest.(*fakeConn))
}

func TestRegistry_AttachRejectsUnknownRole(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Attach("room", Role("admin"), &fakeConn{}), ErrBadHandshake)
}

func TestRegistry_ConcurrentAttachKeepsOnePerRole(t *testing.T) {
	reg := NewRegistry()
	const attempts = 64

	for _, role := range []Role{RoleOwner, RoleGuest} {
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if reg.Attach("room", role, &fakeConn{}) == nil {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load(), "role %s", role)
	}

	owner, guest := reg.Get("room")
	assert.NotNil(t, owner)
	assert.NotNil(t, guest)
}

func TestRegistry_StaleDetachDoesNotClearNewerConnection(t *testing.T) {
	reg := NewRegistry()
	old, current := &fakeConn{}, &fakeConn{}

	require.NoError(t, reg.Attach("room", RoleOwner, old))
	assert.True(t, reg.Detach("room", RoleOwner, old))
	require.NoError(t, reg.Attach("room", RoleOwner, current))

	// the superseded connection's cleanup runs late
	assert.False(t, reg.Detach("room", RoleOwner, old))

	owner, _ := reg.Get("room")
	assert.Same(t, current, owner.(*fakeConn))
}

func TestRegistry_DetachUnknownRoomIsNoop(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Detach("nowhere", RoleGuest, &fakeConn{}))
	assert.Empty(t, reg.ActiveRooms())
}

func TestRegistry_BroadcastPresence(t *testing.T) {
	reg := NewRegistry()
	owner, guest := &fakeConn{}, &fakeConn{}
	require.NoError(t, reg.Attach("room", RoleOwner, owner))

	reg.BroadcastPresence("room")
	require.NoError(t, reg.Attach("room", RoleGuest, guest))
	reg.BroadcastPresence("room")

	assert.Equal(t, []map[string]any{
		{"type": "presence", "owner": true, "guest": false},
		{"type": "presence", "owner": true, "guest": true},
	}, owner.messages(t))
	assert.Equal(t, []map[string]any{
		{"type": "presence", "owner": true, "guest": true},
	}, guest.messages(t))
}

func TestRegistry_BroadcastSwallowsSendFailures(t *testing.T) {
	reg := NewRegistry()
	broken := &fakeConn{sendErr: ErrTransport}
	healthy := &fakeConn{}
	require.NoError(t, reg.Attach("room", RoleOwner, broken))
	require.NoError(t, reg.Attach("room", RoleGuest, healthy))

	assert.NotPanics(t, func() { reg.BroadcastPresence("room") })
	assert.Len(t, healthy.messages(t), 1)
}

func TestRegistry_TakeGuestAndEvict(t *testing.T) {
	reg := NewRegistry()
	owner, guest := &fakeConn{}, &fakeConn{}
	require.NoError(t, reg.Attach("room", RoleOwner, owner))
	require.NoError(t, reg.Attach("room", RoleGuest, guest))

	taken := reg.TakeGuest("room")
	assert.Same(t, guest, taken.(*fakeConn))
	assert.False(t, reg.Occupied("room", RoleGuest))
	assert.Nil(t, reg.TakeGuest("room"))
	assert.Equal(t, []string{"room"}, reg.ActiveRooms())

	evictedOwner, evictedGuest := reg.Evict("room")
	assert.Same(t, owner, evictedOwner.(*fakeConn))
	assert.Nil(t, evictedGuest)
	assert.Empty(t, reg.ActiveRooms())
}

func TestRegistry_Teardown(t *testing.T) {
	reg := NewRegistry()
	owner, guest := &fakeConn{}, &fakeConn{}
	require.NoError(t, reg.Attach("room", RoleOwner, owner))
	require.NoError(t, reg.Attach("room", RoleGuest, guest))

	reg.Teardown("room", ReasonRoomDeleted)

	for _, conn := range []*fakeConn{owner, guest} {
		assert.True(t, conn.isClosed())
		assert.Equal(t, []map[string]any{{"type": "system", "reason": "ROOM_DELETED"}}, conn.messages(t))
	}
	// late cleanup from the closed sessions must not resurrect the room
	assert.False(t, reg.Detach("room", RoleOwner, owner))
	assert.Empty(t, reg.ActiveRooms())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
