package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pulseplay/pulseplay-api/internal/identity"
	"github.com/pulseplay/pulseplay-api/internal/models"
	"github.com/pulseplay/pulseplay-api/internal/services"
)

// ResolverInterface defines the methods used by handlers from identity.Resolver
type ResolverInterface interface {
	Resolve(ctx context.Context, a identity.Assertion) (*models.User, *identity.Session, error)
}

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, firstName, lastName, bio string) (*models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error)
	Ban(ctx context.Context, id uuid.UUID, reason string) (*models.User, error)
	Unban(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenServiceInterface defines the methods used by handlers from TokenService
type TokenServiceInterface interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ValidateRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// JWTServiceInterface defines the methods used by handlers from JWTService
type JWTServiceInterface interface {
	GenerateTokenPair(userID uuid.UUID, email, role string) (*services.TokenPair, error)
	ValidateRefreshToken(token string) (uuid.UUID, error)
	RefreshExpiry() time.Duration
}
