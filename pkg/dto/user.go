package dto

import (
	"time"

	"github.com/google/uuid"
)

type UserResponse struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	FirstName       *string    `json:"first_name,omitempty"`
	LastName        *string    `json:"last_name,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	Bio             *string    `json:"bio,omitempty"`
	ProfilePicture  *string    `json:"profile_picture,omitempty"`
	Role            string     `json:"role"`
	IsActive        bool       `json:"is_active"`
	IsBanned        bool       `json:"is_banned"`
	BanReason       *string    `json:"ban_reason,omitempty"`
	LinkedProviders []string   `json:"linked_providers"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	LoginCount      int        `json:"login_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type BanRequest struct {
	Reason string `json:"reason"`
}
