package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulseplay/pulseplay-api/internal/database"
	"github.com/pulseplay/pulseplay-api/internal/identity"
	"github.com/pulseplay/pulseplay-api/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBanned      = errors.New("account banned")
)

const userColumns = `id, email, username, password, first_name, last_name, phone, bio,
		profile_picture, google_id, discord_id, facebook_id, twitter_id,
		role, is_active, is_banned, ban_reason, last_login_at, login_count,
		created_at, updated_at`

// providerColumns maps a provider tag to its subject-id column. Adding a
// provider means one entry here plus a column with a unique index.
var providerColumns = map[identity.Provider]string{
	identity.ProviderGoogle:   "google_id",
	identity.ProviderDiscord:  "discord_id",
	identity.ProviderFacebook: "facebook_id",
	identity.ProviderTwitter:  "twitter_id",
}

// UserService is the Postgres credential store. It implements
// identity.Store; uniqueness races surface as identity.ErrConflict via the
// unique indexes on email, username and the provider id columns.
type UserService struct {
	db *database.DB
}

func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) FindByProviderID(ctx context.Context, provider identity.Provider, subjectID string) (*models.User, error) {
	column, ok := providerColumns[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	row := s.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM users WHERE %s = $1
	`, userColumns, column), subjectID)

	return scanUser(row)
}

// FindByEmail excludes the reserved placeholder domain so auto-generated
// addresses never participate in email-based account linking.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE email = $1 AND email NOT LIKE $2
	`, email, "%@"+identity.PlaceholderDomain)

	return scanUser(row)
}

func (s *UserService) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)
	`, username).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

func (s *UserService) CreateUser(ctx context.Context, nu identity.NewUser) (*models.User, error) {
	column, ok := providerColumns[nu.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", nu.Provider)
	}

	row := s.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO users (email, username, first_name, last_name, profile_picture, %s, last_login_at, login_count)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), 1)
		RETURNING %s
	`, column, userColumns),
		nu.Email, nu.Username,
		nullableString(nu.FirstName), nullableString(nu.LastName), nullableString(nu.AvatarURL),
		nu.SubjectID,
	)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user: %w", identity.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// UpdateUser applies the resolver's partial update in a single statement.
// COALESCE keeps first-write-wins for avatar and provider slots even when
// two logins for the same account land concurrently.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, upd identity.UserUpdate) (*models.User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	if upd.TouchLogin {
		sets = append(sets, "last_login_at = NOW()", "login_count = login_count + 1")
	}
	if upd.AvatarURL != "" {
		args = append(args, upd.AvatarURL)
		sets = append(sets, fmt.Sprintf("profile_picture = COALESCE(NULLIF(profile_picture, ''), $%d)", len(args)))
	}
	for provider, subjectID := range upd.AttachProviders {
		column, ok := providerColumns[provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider: %s", provider)
		}
		args = append(args, subjectID)
		sets = append(sets, fmt.Sprintf("%s = COALESCE(%s, $%d)", column, column, len(args)))
	}

	row := s.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE users SET %s WHERE id = $1 RETURNING %s
	`, strings.Join(sets, ", "), userColumns), args...)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update user: %w", identity.ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	var existingEmail, existingUsername string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT email, username FROM users WHERE email = $1 OR username = $2
	`, in.Email, in.Username).Scan(&existingEmail, &existingUsername)
	if err == nil {
		if existingEmail == in.Email {
			return nil, ErrEmailTaken
		}
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, username, password, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		in.Email, in.Username, string(hashed),
		nullableString(in.FirstName), nullableString(in.LastName), nullableString(in.Phone),
	)

	user, err := scanUser(row)
	if err != nil {
		// The pre-check races with concurrent registrations; the unique
		// index is authoritative.
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.IsBanned {
		return nil, ErrAccountBanned
	}

	_, err = s.db.Pool.Exec(ctx, `
		UPDATE users SET last_login_at = NOW(), login_count = login_count + 1, updated_at = NOW()
		WHERE id = $1
	`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LoginCount++

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, firstName, lastName, bio string) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx, `
		UPDATE users SET first_name = $1, last_name = $2, bio = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+userColumns,
		nullableString(firstName), nullableString(lastName), nullableString(bio), id,
	)
	return scanUser(row)
}

func (s *UserService) SetRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, role, id)
	return scanUser(row)
}

func (s *UserService) Ban(ctx context.Context, id uuid.UUID, reason string) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx, `
		UPDATE users SET is_banned = TRUE, ban_reason = $1, is_active = FALSE, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, reason, id)
	return scanUser(row)
}

func (s *UserService) Unban(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.Pool.QueryRow(ctx, `
		UPDATE users SET is_banned = FALSE, ban_reason = NULL, is_active = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.Password,
		&user.FirstName, &user.LastName, &user.Phone, &user.Bio,
		&user.ProfilePicture, &user.GoogleID, &user.DiscordID, &user.FacebookID, &user.TwitterID,
		&user.Role, &user.IsActive, &user.IsBanned, &user.BanReason,
		&user.LastLoginAt, &user.LoginCount,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
