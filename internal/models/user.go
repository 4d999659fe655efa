package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform-wide user roles
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	Password       *string    `json:"-"`
	FirstName      *string    `json:"first_name,omitempty"`
	LastName       *string    `json:"last_name,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	Bio            *string    `json:"bio,omitempty"`
	ProfilePicture *string    `json:"profile_picture,omitempty"`
	GoogleID       *string    `json:"-"`
	DiscordID      *string    `json:"-"`
	FacebookID     *string    `json:"-"`
	TwitterID      *string    `json:"-"`
	Role           string     `json:"role"`
	IsActive       bool       `json:"is_active"`
	IsBanned       bool       `json:"is_banned"`
	BanReason      *string    `json:"ban_reason,omitempty"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	LoginCount     int        `json:"login_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasPassword reports whether the account carries a local password credential.
func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}
