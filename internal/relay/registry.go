package relay

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry maps room ids to the live owner and guest connections. It is the
// single source of truth for presence and lives as long as the process; a
// room's entry is created on first attach and only removed by Evict.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*slots
}

type slots struct {
	owner Conn
	guest Conn
}

func (s *slots) get(role Role) Conn {
	if role == RoleOwner {
		return s.owner
	}
	return s.guest
}

func (s *slots) set(role Role, conn Conn) {
	if role == RoleOwner {
		s.owner = conn
	} else {
		s.guest = conn
	}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*slots)}
}

// Attach places conn in the role slot of roomID. It fails with
// ErrSlotOccupied if another connection already holds that slot.
func (r *Registry) Attach(roomID string, role Role, conn Conn) error {
	if !role.Valid() {
		return ErrBadHandshake
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = &slots{}
		r.rooms[roomID] = room
	}
	if current := room.get(role); current != nil {
		return ErrSlotOccupied
	}
	room.set(role, conn)
	return nil
}

// Detach clears the role slot only if it still holds conn, so a late
// cleanup from a superseded connection cannot clear a newer one.
func (r *Registry) Detach(roomID string, role Role, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok || room.get(role) != conn {
		return false
	}
	room.set(role, nil)
	return true
}

// Get returns a snapshot of the room's slots
func (r *Registry) Get(roomID string) (owner, guest Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		return room.owner, room.guest
	}
	return nil, nil
}

// Occupied reports whether the role slot of roomID holds a connection
func (r *Registry) Occupied(roomID string, role Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	return ok && room.get(role) != nil
}

// TakeGuest clears the guest slot and hands back whatever it held.
func (r *Registry) TakeGuest(roomID string) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	guest := room.guest
	room.guest = nil
	return guest
}

// Evict removes the room's entry entirely and returns its connections.
func (r *Registry) Evict(roomID string) (owner, guest Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, nil
	}
	delete(r.rooms, roomID)
	return room.owner, room.guest
}

// Teardown evicts the room and closes both connections after telling them
// why. Their sessions' cleanup finds the entry gone and does nothing more.
func (r *Registry) Teardown(roomID, reason string) {
	owner, guest := r.Evict(roomID)
	for _, conn := range []Conn{owner, guest} {
		if conn == nil {
			continue
		}
		logSendError(conn.Send(systemMessage(reason)), roomID, reason)
		_ = conn.Close()
	}
}

// ActiveRooms lists rooms with at least one attached connection
func (r *Registry) ActiveRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms))
	for id, room := range r.rooms {
		if room.owner != nil || room.guest != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// BroadcastPresence sends the current presence to every attached connection.
// Sends happen outside the lock and failures are only logged; the failing
// connection's own cleanup reconciles the slot.
func (r *Registry) BroadcastPresence(roomID string) {
	owner, guest := r.Get(roomID)
	msg := Presence{Type: TypePresence, Owner: owner != nil, Guest: guest != nil}

	for _, conn := range []Conn{owner, guest} {
		if conn == nil {
			continue
		}
		logSendError(conn.Send(msg), roomID, "presence")
	}
}

func logSendError(err error, roomID, what string) {
	if err == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "message": what})
	if errors.Is(err, ErrPeerGone) {
		logCtx.WithError(err).Debug("Dropped message to departed peer")
		return
	}
	logCtx.WithError(err).Warn("Failed to send message to peer")
}
