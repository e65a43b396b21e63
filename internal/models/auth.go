package models

import "time"

// MasterCredential represents the auth table. It holds the single owner
// password hash.
type MasterCredential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PasswordHash string    `gorm:"not null;size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for MasterCredential model
func (MasterCredential) TableName() string {
	return "auth"
}
