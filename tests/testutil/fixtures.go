package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulseplay/pulseplay-api/internal/database"
	"github.com/pulseplay/pulseplay-api/internal/identity"
	"github.com/pulseplay/pulseplay-api/internal/models"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a test user with default values
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	googleID := fmt.Sprintf("google-%d", f.counter)
	user := &models.User{
		Email:    fmt.Sprintf("user%d@example.com", f.counter),
		Username: fmt.Sprintf("user%d", f.counter),
		GoogleID: &googleID,
		Role:     models.RoleUser,
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, username, password, profile_picture, google_id, discord_id, facebook_id, twitter_id, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, user.Email, user.Username, user.Password, user.ProfilePicture,
		user.GoogleID, user.DiscordID, user.FacebookID, user.TwitterID, user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

// WithEmail sets the user's email
func WithEmail(email string) UserOption {
	return func(u *models.User) {
		u.Email = email
	}
}

// WithUsername sets the user's username
func WithUsername(username string) UserOption {
	return func(u *models.User) {
		u.Username = username
	}
}

// WithPassword sets a bcrypt-hashed password credential
func WithPassword(t *testing.T, password string) UserOption {
	return func(u *models.User) {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		s := string(hashed)
		u.Password = &s
	}
}

// WithProvider replaces the default google identity with the given provider link
func WithProvider(provider identity.Provider, subjectID string) UserOption {
	return func(u *models.User) {
		u.GoogleID = nil
		switch provider {
		case identity.ProviderGoogle:
			u.GoogleID = &subjectID
		case identity.ProviderDiscord:
			u.DiscordID = &subjectID
		case identity.ProviderFacebook:
			u.FacebookID = &subjectID
		case identity.ProviderTwitter:
			u.TwitterID = &subjectID
		}
	}
}

// WithAvatar sets the user's profile picture
func WithAvatar(url string) UserOption {
	return func(u *models.User) {
		u.ProfilePicture = &url
	}
}

// WithRole sets the user's role
func WithRole(role string) UserOption {
	return func(u *models.User) {
		u.Role = role
	}
}

// CreateRefreshToken creates a test refresh token
func (f *Fixtures) CreateRefreshToken(t *testing.T, userID uuid.UUID, tokenHash string, expiresAt time.Time) {
	t.Helper()
	ctx := context.Background()

	_, err := f.db.Pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	if err != nil {
		t.Fatalf("failed to create refresh token: %v", err)
	}
}

// GoogleAssertion creates a test assertion as the google adapter would emit it
func GoogleAssertion(subjectID, email string) identity.Assertion {
	return identity.Assertion{
		Provider:  identity.ProviderGoogle,
		SubjectID: subjectID,
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		AvatarURL: "https://example.com/avatar.png",
	}
}
