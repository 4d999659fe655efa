package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/pulseplay/pulseplay-api/internal/models"
)

// memStore is an in-memory Store that enforces the same uniqueness
// constraints as the Postgres schema, so create races surface as
// ErrConflict exactly like a unique index violation would.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *memStore) FindByProviderID(_ context.Context, provider Provider, subjectID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if SubjectOf(u, provider) == subjectID {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if IsPlaceholderEmail(email) {
		return nil, ErrNotFound
	}
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) UsernameTaken(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateUser(_ context.Context, nu NewUser) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == nu.Email || u.Username == nu.Username || SubjectOf(u, nu.Provider) == nu.SubjectID {
			return nil, ErrConflict
		}
	}

	now := time.Now()
	user := &models.User{
		ID:         uuid.New(),
		Email:      nu.Email,
		Username:   nu.Username,
		Role:       models.RoleUser,
		IsActive:   true,
		LoginCount: 1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if nu.FirstName != "" {
		user.FirstName = &nu.FirstName
	}
	if nu.LastName != "" {
		user.LastName = &nu.LastName
	}
	if nu.AvatarURL != "" {
		user.ProfilePicture = &nu.AvatarURL
	}
	setSubject(user, nu.Provider, nu.SubjectID)
	user.LastLoginAt = &now

	s.users[user.ID] = user
	return copyUser(user), nil
}

func (s *memStore) UpdateUser(_ context.Context, id uuid.UUID, upd UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	for provider, subject := range upd.AttachProviders {
		for _, other := range s.users {
			if other.ID != id && SubjectOf(other, provider) == subject {
				return nil, ErrConflict
			}
		}
		if SubjectOf(user, provider) == "" {
			setSubject(user, provider, subject)
		}
	}
	if upd.AvatarURL != "" && (user.ProfilePicture == nil || *user.ProfilePicture == "") {
		avatar := upd.AvatarURL
		user.ProfilePicture = &avatar
	}
	if upd.TouchLogin {
		now := time.Now()
		user.LastLoginAt = &now
		user.LoginCount++
	}
	user.UpdatedAt = time.Now()

	return copyUser(user), nil
}

func setSubject(u *models.User, p Provider, subject string) {
	v := subject
	switch p {
	case ProviderGoogle:
		u.GoogleID = &v
	case ProviderDiscord:
		u.DiscordID = &v
	case ProviderFacebook:
		u.FacebookID = &v
	case ProviderTwitter:
		u.TwitterID = &v
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

type stubIssuer struct {
	mu    sync.Mutex
	calls int
}

func (s *stubIssuer) Issue(userID uuid.UUID, email, _ string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &Session{
		AccessToken:  "access-" + userID.String(),
		RefreshToken: "refresh-" + email,
		ExpiresIn:    900,
	}, nil
}

func setupResolver(t *testing.T) (*Resolver, *memStore, *stubIssuer) {
	t.Helper()
	store := newMemStore()
	issuer := &stubIssuer{}
	return NewResolver(store, issuer, zerolog.Nop()), store, issuer
}

func googleAssertion() Assertion {
	return Assertion{
		Provider:  ProviderGoogle,
		SubjectID: "g1",
		Email:     "a@x.com",
		Username:  "alice",
		FirstName: "Alice",
		AvatarURL: "https://cdn.example.com/alice.png",
	}
}

func TestResolver_CreatesUserOnEmptyStore(t *testing.T) {
	resolver, _, issuer := setupResolver(t)

	user, session, err := resolver.Resolve(context.Background(), googleAssertion())

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "g1", *user.GoogleID)
	assert.Nil(t, user.Password)
	assert.Equal(t, models.RoleUser, user.Role)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, 1, issuer.calls)
}

func TestResolver_ReturningLoginIsIdempotent(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	first, _, err := resolver.Resolve(ctx, googleAssertion())
	require.NoError(t, err)

	// Same subject, different email claim: the stored account wins.
	changed := googleAssertion()
	changed.Email = "renamed@x.com"

	second, _, err := resolver.Resolve(ctx, changed)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a@x.com", second.Email)
	assert.Equal(t, first.LoginCount+1, second.LoginCount)

	third, _, err := resolver.Resolve(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
}

func TestResolver_LinksSecondProviderViaEmail(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	created, _, err := resolver.Resolve(ctx, googleAssertion())
	require.NoError(t, err)

	linked, _, err := resolver.Resolve(ctx, Assertion{
		Provider:  ProviderDiscord,
		SubjectID: "d1",
		Email:     "a@x.com",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, linked.ID)
	require.NotNil(t, linked.GoogleID)
	assert.Equal(t, "g1", *linked.GoogleID)
	require.NotNil(t, linked.DiscordID)
	assert.Equal(t, "d1", *linked.DiscordID)
}

func TestResolver_ExistingProviderSlotIsNeverOverwritten(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	_, _, err := resolver.Resolve(ctx, googleAssertion())
	require.NoError(t, err)

	// Different google subject sharing the email matches via step 2; the
	// occupied google slot must keep its original subject id.
	user, _, err := resolver.Resolve(ctx, Assertion{
		Provider:  ProviderGoogle,
		SubjectID: "g2",
		Email:     "a@x.com",
	})
	require.NoError(t, err)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "g1", *user.GoogleID)
}

func TestResolver_NoEmailCreatesPlaceholderAccount(t *testing.T) {
	resolver, _, _ := setupResolver(t)

	user, _, err := resolver.Resolve(context.Background(), Assertion{
		Provider:  ProviderTwitter,
		SubjectID: "t1",
	})

	require.NoError(t, err)
	assert.Equal(t, "twitter_t1@pulseplay.invalid", user.Email)
	assert.Equal(t, "twitter_t1", user.Username)
	require.NotNil(t, user.TwitterID)
	assert.Equal(t, "t1", *user.TwitterID)
}

func TestResolver_PlaceholderEmailNeverMatchesByEmail(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	twitterUser, _, err := resolver.Resolve(ctx, Assertion{Provider: ProviderTwitter, SubjectID: "t1"})
	require.NoError(t, err)

	// A hostile or buggy provider echoing the placeholder back as a real
	// email must not merge into the twitter account.
	other, _, err := resolver.Resolve(ctx, Assertion{
		Provider:  ProviderFacebook,
		SubjectID: "f1",
		Email:     twitterUser.Email,
	})
	require.NoError(t, err)
	assert.NotEqual(t, twitterUser.ID, other.ID)
}

func TestResolver_AvatarFirstWriteWins(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	created, _, err := resolver.Resolve(ctx, googleAssertion())
	require.NoError(t, err)
	require.NotNil(t, created.ProfilePicture)

	updated := googleAssertion()
	updated.AvatarURL = "https://cdn.example.com/other.png"

	user, _, err := resolver.Resolve(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, *created.ProfilePicture, *user.ProfilePicture)
}

func TestResolver_AvatarAdoptedWhenEmpty(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	bare := googleAssertion()
	bare.AvatarURL = ""
	created, _, err := resolver.Resolve(ctx, bare)
	require.NoError(t, err)
	assert.Nil(t, created.ProfilePicture)

	withAvatar := googleAssertion()
	user, _, err := resolver.Resolve(ctx, withAvatar)
	require.NoError(t, err)
	require.NotNil(t, user.ProfilePicture)
	assert.Equal(t, withAvatar.AvatarURL, *user.ProfilePicture)
}

func TestResolver_UsernameHintCollisionFallsBack(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	_, _, err := resolver.Resolve(ctx, googleAssertion())
	require.NoError(t, err)

	// Same hint, unrelated identity and email.
	user, _, err := resolver.Resolve(ctx, Assertion{
		Provider:  ProviderDiscord,
		SubjectID: "d9",
		Email:     "b@x.com",
		Username:  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "discord_d9", user.Username)
}

func TestResolver_FallbackCollisionGetsTimeSuffix(t *testing.T) {
	resolver, _, _ := setupResolver(t)
	ctx := context.Background()

	// Occupy the deterministic fallback name.
	first, _, err := resolver.Resolve(ctx, Assertion{Provider: ProviderTwitter, SubjectID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "twitter_t1", first.Username)

	// Same fallback base (subject sliced to 8 chars), no email.
	second, _, err := resolver.Resolve(ctx, Assertion{Provider: ProviderTwitter, SubjectID: "t1extra-tail"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Username, second.Username)
	assert.Contains(t, second.Username, "twitter_t1")
}

func TestResolver_LongSubjectIsSliced(t *testing.T) {
	resolver, _, _ := setupResolver(t)

	user, _, err := resolver.Resolve(context.Background(), Assertion{
		Provider:  ProviderDiscord,
		SubjectID: "123456789012345678",
	})
	require.NoError(t, err)
	assert.Equal(t, "discord_12345678", user.Username)
}

func TestResolver_RejectsAssertionWithoutSubject(t *testing.T) {
	resolver, store, _ := setupResolver(t)

	_, _, err := resolver.Resolve(context.Background(), Assertion{Provider: ProviderGoogle, Email: "a@x.com"})

	assert.ErrorIs(t, err, ErrInvalidAssertion)
	assert.Empty(t, store.users)
}

func TestResolver_RejectsUnknownProvider(t *testing.T) {
	resolver, _, _ := setupResolver(t)

	_, _, err := resolver.Resolve(context.Background(), Assertion{Provider: "myspace", SubjectID: "m1"})

	assert.ErrorIs(t, err, ErrInvalidAssertion)
}

// conflictStore forces CreateUser to fail with ErrConflict a fixed number of
// times before delegating, simulating lost uniqueness races.
type conflictStore struct {
	Store
	mu        sync.Mutex
	conflicts int
}

func (s *conflictStore) CreateUser(ctx context.Context, nu NewUser) (*models.User, error) {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return nil, ErrConflict
	}
	s.mu.Unlock()
	return s.Store.CreateUser(ctx, nu)
}

func TestResolver_RetriesOnceOnCreateConflict(t *testing.T) {
	store := &conflictStore{Store: newMemStore(), conflicts: 1}
	resolver := NewResolver(store, &stubIssuer{}, zerolog.Nop())

	user, _, err := resolver.Resolve(context.Background(), googleAssertion())

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestResolver_SurfacesConflictAfterRetry(t *testing.T) {
	store := &conflictStore{Store: newMemStore(), conflicts: 2}
	resolver := NewResolver(store, &stubIssuer{}, zerolog.Nop())

	_, _, err := resolver.Resolve(context.Background(), googleAssertion())

	assert.ErrorIs(t, err, ErrCreationConflict)
}

func TestResolver_ConcurrentSameIdentityCreatesOneUser(t *testing.T) {
	resolver, store, _ := setupResolver(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	ids := make([]uuid.UUID, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, _, err := resolver.Resolve(ctx, googleAssertion())
			errs[i] = err
			if err == nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, store.users, 1)
}

func TestResolver_ConcurrentDistinctIdentitiesAllSucceed(t *testing.T) {
	resolver, store, _ := setupResolver(t)
	ctx := context.Background()

	const workers = 24
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// No email, no username hint: everything is derived.
			_, _, err := resolver.Resolve(ctx, Assertion{
				Provider:  ProviderTwitter,
				SubjectID: fmt.Sprintf("s%02d", i),
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	usernames := make(map[string]struct{})
	emails := make(map[string]struct{})
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
	}
	for _, u := range store.users {
		usernames[u.Username] = struct{}{}
		emails[u.Email] = struct{}{}
		assert.True(t, IsPlaceholderEmail(u.Email))
	}
	assert.Len(t, store.users, workers)
	assert.Len(t, usernames, workers)
	assert.Len(t, emails, workers)
}

func TestPlaceholderEmail_Format(t *testing.T) {
	assert.Equal(t, "google_g1@pulseplay.invalid", PlaceholderEmail(ProviderGoogle, "g1"))
	assert.True(t, IsPlaceholderEmail("google_g1@pulseplay.invalid"))
	assert.True(t, IsPlaceholderEmail("TWITTER_T1@PULSEPLAY.INVALID"))
	assert.False(t, IsPlaceholderEmail("someone@example.com"))
}
