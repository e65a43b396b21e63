package models

import "time"

// Room is the persisted session context an owner and a single guest connect to.
type Room struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Guest identity, empty until guest setup
	GuestName    string `gorm:"column:guest_name;size:50" json:"guest_name,omitempty"`
	GuestPINHash string `gorm:"column:guest_pin_hash;size:255" json:"-"`

	Join JoinCredential `gorm:"embedded;embeddedPrefix:join_" json:"join"`
}

// TableName specifies the table name for Room model
func (Room) TableName() string {
	return "rooms"
}

// HasGuest reports whether a guest identity has been set up for the room.
func (r *Room) HasGuest() bool {
	return r.GuestPINHash != ""
}

// JoinCredential gates new connections to a room. An empty Key means the
// room has no join section and is not joinable.
type JoinCredential struct {
	Key       string     `gorm:"column:key;size:64" json:"key"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at"`
	Revoked   bool       `gorm:"column:revoked;default:false" json:"revoked"`
}

// Joinable reports whether the credential section is present.
func (j JoinCredential) Joinable() bool {
	return j.Key != ""
}

// GuestIdentity is the guest record written by setup and change-pin.
type GuestIdentity struct {
	Name    string
	PINHash string
}
