package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a directory entry. The service only resolves display identity from
// it; it never authenticates users.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Email     string    `gorm:"not null;uniqueIndex"`
	Username  string    `gorm:"not null;uniqueIndex"`
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the name shown in timeline entries.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
