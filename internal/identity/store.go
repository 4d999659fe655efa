package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pulseplay/pulseplay-api/internal/models"
)

var (
	// ErrNotFound is returned by lookups that match no user.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when a create or update trips a uniqueness
	// constraint. It is distinct from ErrNotFound and from transport
	// failures so the resolver can treat it as retryable.
	ErrConflict = errors.New("unique constraint violated")
)

// NewUser carries the fields for creating an account from an assertion.
// Password is always absent on this path.
type NewUser struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	AvatarURL string
	Provider  Provider
	SubjectID string
}

// UserUpdate is the partial update applied on a returning federated login.
// AvatarURL is adopted only if the stored avatar is empty (first-write-wins);
// AttachProviders fills provider slots that are empty on the user and never
// overwrites an existing subject id.
type UserUpdate struct {
	TouchLogin      bool
	AvatarURL       string
	AttachProviders map[Provider]string
}

// Store is the credential persistence the resolver depends on. Uniqueness of
// email, username and each provider subject id is enforced by the store, not
// by the resolver; concurrent create races surface as ErrConflict.
type Store interface {
	FindByProviderID(ctx context.Context, provider Provider, subjectID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, u NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, upd UserUpdate) (*models.User, error)
}

// Session is the bearer credential minted for a resolved user.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// SessionIssuer mints sessions. The resolver treats it as opaque.
type SessionIssuer interface {
	Issue(userID uuid.UUID, email, role string) (*Session, error)
}
