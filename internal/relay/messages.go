package relay

// Role is the slot a connection occupies in a room.
type Role string

const (
	RoleOwner Role = "owner"
	RoleGuest Role = "guest"
)

// Valid reports whether r names one of the two slots
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleGuest
}

// Opposite returns the role messages are relayed to
func (r Role) Opposite() Role {
	if r == RoleOwner {
		return RoleGuest
	}
	return RoleOwner
}

const (
	TypePresence = "presence"
	TypeSystem   = "system"
)

// System notification reasons
const (
	ReasonRoomExpired    = "ROOM_EXPIRED"
	ReasonRoomDeleted    = "ROOM_DELETED"
	ReasonServerShutdown = "SERVER_SHUTDOWN"
	ReasonBadHandshake   = "BAD_HANDSHAKE"
	ReasonSlotOccupied   = "SLOT_OCCUPIED"
	ReasonUnauthorized   = "UNAUTHORIZED"
)

// Handshake is the first and only control message a client sends.
// Owners present the master token, guests the room's join key.
type Handshake struct {
	Role  Role   `json:"role"`
	Key   string `json:"key,omitempty"`
	Token string `json:"token,omitempty"`
}

// Presence tells every attached connection which slots are live
type Presence struct {
	Type  string `json:"type"`
	Owner bool   `json:"owner"`
	Guest bool   `json:"guest"`
}

// System is a server notice, usually sent right before the server closes
// the connection.
type System struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func systemMessage(reason string) System {
	return System{Type: TypeSystem, Reason: reason}
}
