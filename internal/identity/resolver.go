package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/pulseplay/pulseplay-api/internal/models"
)

var (
	// ErrInvalidAssertion marks an assertion that cannot identify anyone.
	ErrInvalidAssertion = errors.New("invalid identity assertion")
	// ErrCreationConflict is surfaced after the single internal retry on a
	// uniqueness race also fails.
	ErrCreationConflict = errors.New("account creation conflict")
)

// Resolver maps one identity assertion to exactly one user and mints a
// session for it. Lookup order is provider subject id first, then real
// email; first match wins. The order is a deliberate tie-break policy:
// reordering changes which accounts merge.
type Resolver struct {
	store    Store
	sessions SessionIssuer
	log      zerolog.Logger
	now      func() time.Time
}

func NewResolver(store Store, sessions SessionIssuer, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// Resolve produces the user owning the asserted identity, creating or linking
// an account as needed, and issues a session bound to it. It performs exactly
// one store mutation per attempt and retries the whole resolution once when a
// concurrent resolve for the same new identity wins the create race.
func (r *Resolver) Resolve(ctx context.Context, a Assertion) (*models.User, *Session, error) {
	if a.SubjectID == "" || !a.Provider.Known() {
		return nil, nil, fmt.Errorf("%w: provider=%q subject=%q", ErrInvalidAssertion, a.Provider, a.SubjectID)
	}

	user, err := r.resolveUser(ctx, a)
	if errors.Is(err, ErrConflict) {
		// Lost a race with another resolve for the same identity. The
		// winner's row now satisfies the lookup, so one retry suffices.
		r.log.Debug().Str("provider", string(a.Provider)).Msg("create raced, retrying resolve")
		user, err = r.resolveUser(ctx, a)
		if errors.Is(err, ErrConflict) {
			return nil, nil, fmt.Errorf("%w: %s subject %s", ErrCreationConflict, a.Provider, a.SubjectID)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	session, err := r.sessions.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue session: %w", err)
	}

	return user, session, nil
}

func (r *Resolver) resolveUser(ctx context.Context, a Assertion) (*models.User, error) {
	user, err := r.store.FindByProviderID(ctx, a.Provider, a.SubjectID)
	switch {
	case err == nil:
		return r.refresh(ctx, user, a)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	// Placeholder addresses are excluded from email matching, otherwise a
	// provider that discloses no email could merge into another provider's
	// auto-created account.
	if a.Email != "" && !IsPlaceholderEmail(a.Email) {
		user, err = r.store.FindByEmail(ctx, a.Email)
		switch {
		case err == nil:
			return r.refresh(ctx, user, a)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	return r.create(ctx, a)
}

// refresh handles a returning or newly-linked login: bump the login counter,
// adopt the avatar only if none is set, and attach the asserted provider id
// if that slot is still empty. Existing provider ids and the password
// credential are never touched.
func (r *Resolver) refresh(ctx context.Context, user *models.User, a Assertion) (*models.User, error) {
	upd := UserUpdate{TouchLogin: true}

	if a.AvatarURL != "" && (user.ProfilePicture == nil || *user.ProfilePicture == "") {
		upd.AvatarURL = a.AvatarURL
	}
	if SubjectOf(user, a.Provider) == "" {
		upd.AttachProviders = map[Provider]string{a.Provider: a.SubjectID}
	}

	return r.store.UpdateUser(ctx, user.ID, upd)
}

func (r *Resolver) create(ctx context.Context, a Assertion) (*models.User, error) {
	username, err := r.pickUsername(ctx, a)
	if err != nil {
		return nil, err
	}

	email := a.Email
	if email == "" {
		email = PlaceholderEmail(a.Provider, a.SubjectID)
	}

	user, err := r.store.CreateUser(ctx, NewUser{
		Email:     email,
		Username:  username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		AvatarURL: a.AvatarURL,
		Provider:  a.Provider,
		SubjectID: a.SubjectID,
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("provider", string(a.Provider)).
		Str("username", user.Username).
		Stringer("user_id", user.ID).
		Msg("created user from federated identity")

	return user, nil
}

// pickUsername prefers the provider's username hint, falls back to a
// deterministic provider+subject name, and appends a time-derived suffix on
// continued collision so creation succeeds without a retry loop.
func (r *Resolver) pickUsername(ctx context.Context, a Assertion) (string, error) {
	if a.Username != "" {
		taken, err := r.store.UsernameTaken(ctx, a.Username)
		if err != nil {
			return "", err
		}
		if !taken {
			return a.Username, nil
		}
	}

	subject := a.SubjectID
	if len(subject) > 8 {
		subject = subject[:8]
	}
	fallback := fmt.Sprintf("%s_%s", a.Provider, subject)

	taken, err := r.store.UsernameTaken(ctx, fallback)
	if err != nil {
		return "", err
	}
	if !taken {
		return fallback, nil
	}

	return fmt.Sprintf("%s_%s", fallback, strconv.FormatInt(r.now().UnixNano(), 36)), nil
}

// SubjectOf returns the subject id user carries for provider, or "".
func SubjectOf(u *models.User, p Provider) string {
	var id *string
	switch p {
	case ProviderGoogle:
		id = u.GoogleID
	case ProviderDiscord:
		id = u.DiscordID
	case ProviderFacebook:
		id = u.FacebookID
	case ProviderTwitter:
		id = u.TwitterID
	}
	if id == nil {
		return ""
	}
	return *id
}
