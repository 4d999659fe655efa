package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/rs/zerolog"

	"github.com/pulseplay/pulseplay-api/internal/config"
	"github.com/pulseplay/pulseplay-api/internal/identity"
	"github.com/pulseplay/pulseplay-api/internal/middleware"
	"github.com/pulseplay/pulseplay-api/internal/models"
	"github.com/pulseplay/pulseplay-api/internal/oauth"
	"github.com/pulseplay/pulseplay-api/internal/services"
	"github.com/pulseplay/pulseplay-api/pkg/dto"
)

const (
	stateTTL    = 10 * time.Minute
	authCodeTTL = 30 * time.Second
)

type authCodeData struct {
	userID  uuid.UUID
	session *identity.Session
}

type AuthHandler struct {
	cfg          *config.Config
	providers    map[string]oauth.Provider
	resolver     ResolverInterface
	userService  UserServiceInterface
	tokenService TokenServiceInterface
	jwtService   JWTServiceInterface
	log          zerolog.Logger

	// One-time CSRF states and auth codes. Entries expire on TTL alone;
	// reads must not extend a code's lifetime.
	states    *ttlcache.Cache[string, struct{}]
	authCodes *ttlcache.Cache[string, authCodeData]
}

func NewAuthHandler(
	cfg *config.Config,
	resolver ResolverInterface,
	userService UserServiceInterface,
	tokenService TokenServiceInterface,
	jwtService JWTServiceInterface,
	log zerolog.Logger,
) *AuthHandler {
	h := &AuthHandler{
		cfg:          cfg,
		providers:    make(map[string]oauth.Provider),
		resolver:     resolver,
		userService:  userService,
		tokenService: tokenService,
		jwtService:   jwtService,
		log:          log,
		states: ttlcache.New(
			ttlcache.WithTTL[string, struct{}](stateTTL),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		authCodes: ttlcache.New(
			ttlcache.WithTTL[string, authCodeData](authCodeTTL),
			ttlcache.WithDisableTouchOnHit[string, authCodeData](),
		),
	}

	if cfg.Google.ClientID != "" {
		h.providers[string(identity.ProviderGoogle)] = oauth.NewGoogleProvider(cfg.Google)
	}
	if cfg.Discord.ClientID != "" {
		h.providers[string(identity.ProviderDiscord)] = oauth.NewDiscordProvider(cfg.Discord)
	}
	if cfg.Facebook.ClientID != "" {
		h.providers[string(identity.ProviderFacebook)] = oauth.NewFacebookProvider(cfg.Facebook)
	}
	if cfg.Twitter.ClientID != "" {
		h.providers[string(identity.ProviderTwitter)] = oauth.NewTwitterProvider(cfg.Twitter)
	}

	go h.states.Start()
	go h.authCodes.Start()

	return h
}

func (h *AuthHandler) Register(c *drift.Context) {
	var req dto.RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		c.BadRequest("a valid email is required")
		return
	}
	if identity.IsPlaceholderEmail(req.Email) {
		c.BadRequest("email domain is reserved")
		return
	}
	if len(req.Username) < 3 {
		c.BadRequest("username must be at least 3 characters")
		return
	}
	if len(req.Password) < 8 {
		c.BadRequest("password must be at least 8 characters")
		return
	}

	user, err := h.userService.Register(context.Background(), services.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			c.BadRequest("email already registered")
		case errors.Is(err, services.ErrUsernameTaken):
			c.BadRequest("username already taken")
		default:
			h.log.Error().Err(err).Msg("registration failed")
			c.InternalServerError("failed to register")
		}
		return
	}

	h.respondWithTokens(c, user)
}

func (h *AuthHandler) SignIn(c *drift.Context) {
	var req dto.SignInRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		c.BadRequest("email and password are required")
		return
	}

	user, err := h.userService.Authenticate(context.Background(), strings.ToLower(req.Email), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountBanned):
			c.Forbidden("account is banned")
		case errors.Is(err, services.ErrInvalidCredentials):
			c.Unauthorized("invalid email or password")
		default:
			h.log.Error().Err(err).Msg("sign-in failed")
			c.InternalServerError("failed to sign in")
		}
		return
	}

	h.respondWithTokens(c, user)
}

func (h *AuthHandler) GetConsentURL(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		c.BadRequest("unsupported provider: " + provider)
		return
	}

	state, err := oauth.GenerateState()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	h.states.Set(state, struct{}{}, ttlcache.DefaultTTL)

	_ = c.JSON(200, dto.ConsentURLResponse{
		URL: p.GetConsentURL(state),
	})
}

func (h *AuthHandler) Callback(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		h.redirectWithError(c, "unsupported provider")
		return
	}

	state := c.QueryParam("state")
	if state == "" {
		h.redirectWithError(c, "missing state parameter")
		return
	}
	if h.states.Get(state) == nil {
		h.redirectWithError(c, "invalid or expired state")
		return
	}
	h.states.Delete(state)

	code := c.QueryParam("code")
	if code == "" {
		h.redirectWithError(c, "missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assertion, err := p.ExchangeCode(ctx, code)
	if err != nil {
		h.log.Warn().Err(err).Str("provider", provider).Msg("code exchange failed")
		h.redirectWithError(c, "failed to exchange code")
		return
	}

	user, session, err := h.resolver.Resolve(ctx, *assertion)
	if err != nil {
		h.log.Error().Err(err).Str("provider", provider).Msg("identity resolution failed")
		switch {
		case errors.Is(err, identity.ErrInvalidAssertion):
			h.redirectWithError(c, "provider returned an unusable identity")
		case errors.Is(err, identity.ErrCreationConflict):
			h.redirectWithError(c, "account creation conflict, please retry")
		default:
			h.redirectWithError(c, "failed to sign in")
		}
		return
	}

	if user.IsBanned {
		h.redirectWithError(c, "account is banned")
		return
	}

	authCode, err := oauth.GenerateState()
	if err != nil {
		h.redirectWithError(c, "failed to generate auth code")
		return
	}

	h.authCodes.Set(authCode, authCodeData{userID: user.ID, session: session}, ttlcache.DefaultTTL)

	redirectURL := fmt.Sprintf("%s?code=%s",
		h.cfg.FrontendCallbackURL,
		url.QueryEscape(authCode),
	)

	h.renderCallbackPage(c, redirectURL, authCode, "")
}

func (h *AuthHandler) ExchangeCode(c *drift.Context) {
	var req dto.ExchangeCodeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Code == "" {
		c.BadRequest("code is required")
		return
	}

	item := h.authCodes.Get(req.Code)
	if item == nil {
		c.Unauthorized("invalid or expired code")
		return
	}
	h.authCodes.Delete(req.Code)
	data := item.Value()

	tokenHash := services.HashToken(data.session.RefreshToken)
	expiresAt := time.Now().Add(h.jwtService.RefreshExpiry())
	if err := h.tokenService.StoreRefreshToken(context.Background(), data.userID, tokenHash, expiresAt); err != nil {
		c.InternalServerError("failed to store refresh token")
		return
	}

	_ = c.JSON(200, dto.TokenResponse{
		AccessToken:  data.session.AccessToken,
		RefreshToken: data.session.RefreshToken,
		ExpiresIn:    data.session.ExpiresIn,
	})
}

func (h *AuthHandler) RefreshToken(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken == "" {
		c.BadRequest("refresh_token is required")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Unauthorized("invalid refresh token")
		return
	}

	tokenHash := services.HashToken(req.RefreshToken)
	ctx := context.Background()

	storedUserID, err := h.tokenService.ValidateRefreshToken(ctx, tokenHash)
	if err != nil || storedUserID != userID {
		c.Unauthorized("refresh token not found or expired")
		return
	}

	user, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		c.Unauthorized("user not found")
		return
	}
	if user.IsBanned {
		c.Forbidden("account is banned")
		return
	}

	if err := h.tokenService.RevokeRefreshToken(ctx, tokenHash); err != nil {
		c.InternalServerError("failed to revoke old token")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		c.InternalServerError("failed to generate tokens")
		return
	}

	newTokenHash := services.HashToken(tokenPair.RefreshToken)
	expiresAt := time.Now().Add(h.jwtService.RefreshExpiry())
	if err := h.tokenService.StoreRefreshToken(ctx, user.ID, newTokenHash, expiresAt); err != nil {
		c.InternalServerError("failed to store refresh token")
		return
	}

	_ = c.JSON(200, dto.TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	})
}

func (h *AuthHandler) Logout(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken != "" {
		tokenHash := services.HashToken(req.RefreshToken)
		_ = h.tokenService.RevokeRefreshToken(context.Background(), tokenHash)
	}

	_ = c.JSON(200, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	if err := h.tokenService.RevokeAllUserTokens(context.Background(), userID); err != nil {
		c.InternalServerError("failed to revoke tokens")
		return
	}

	_ = c.JSON(200, map[string]string{"message": "all sessions logged out"})
}

// respondWithTokens issues a fresh token pair for a password-based login or
// registration and returns it alongside the profile.
func (h *AuthHandler) respondWithTokens(c *drift.Context, user *models.User) {
	tokenPair, err := h.jwtService.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		c.InternalServerError("failed to generate tokens")
		return
	}

	tokenHash := services.HashToken(tokenPair.RefreshToken)
	expiresAt := time.Now().Add(h.jwtService.RefreshExpiry())
	if err := h.tokenService.StoreRefreshToken(context.Background(), user.ID, tokenHash, expiresAt); err != nil {
		c.InternalServerError("failed to store refresh token")
		return
	}

	_ = c.JSON(200, dto.AuthResponse{
		User: toUserResponse(user),
		Tokens: dto.TokenResponse{
			AccessToken:  tokenPair.AccessToken,
			RefreshToken: tokenPair.RefreshToken,
			ExpiresIn:    tokenPair.ExpiresIn,
		},
	})
}

func (h *AuthHandler) redirectWithError(c *drift.Context, errMsg string) {
	redirectURL := fmt.Sprintf("%s?error=%s",
		h.cfg.FrontendCallbackURL,
		url.QueryEscape(errMsg),
	)
	h.renderCallbackPage(c, redirectURL, errMsg, "error")
}

func (h *AuthHandler) renderCallbackPage(c *drift.Context, deepLink, code, status string) {
	title := "Sign-in Successful"
	heading := "You're signed in!"
	subtitle := "Redirecting you to PulsePlay..."
	headingColor := "#111827"
	statusCode := 200
	codeSection := ""

	if status == "error" {
		title = "Sign-in Failed"
		heading = "Sign-in failed"
		subtitle = code
		headingColor = "#991b1b"
		statusCode = 400
	} else {
		codeSection = fmt.Sprintf(`
        <div class="divider"></div>
        <p class="fallback-hint">Didn't redirect automatically? Copy the code below and paste it in the PulsePlay app.</p>
        <div class="code-container">
            <code id="auth-code">%s</code>
            <button onclick="copyCode()" class="copy-btn" id="copy-btn">Copy</button>
        </div>`, code)
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        * { box-sizing: border-box; }
        body { font-family: system-ui, -apple-system, sans-serif; background: #f9fafb; color: #374151; margin: 0; padding: 40px 20px; min-height: 100vh; }
        .container { max-width: 400px; margin: 0 auto; background: #fff; border: 1px solid #e5e7eb; border-radius: 8px; padding: 40px 32px; text-align: center; }
        .icon { margin-bottom: 24px; }
        .icon svg { width: 48px; height: 48px; }
        h1 { font-size: 20px; font-weight: 600; color: %s; margin: 0 0 8px 0; }
        .subtitle { color: #6b7280; font-size: 14px; margin: 0 0 4px 0; }
        .close-hint { color: #9ca3af; font-size: 13px; margin: 0; }
        .divider { border-top: 1px solid #e5e7eb; margin: 24px 0; }
        .fallback-hint { color: #6b7280; font-size: 13px; margin: 0 0 12px 0; }
        .code-container { display: flex; align-items: center; background: #f3f4f6; border: 1px solid #e5e7eb; border-radius: 6px; padding: 8px 12px; gap: 8px; }
        .code-container code { flex: 1; font-family: monospace; font-size: 13px; color: #111827; word-break: break-all; text-align: left; }
        .copy-btn { background: #374151; color: #fff; border: none; border-radius: 4px; padding: 6px 12px; font-size: 12px; font-weight: 500; cursor: pointer; white-space: nowrap; }
        .copy-btn:hover { background: #1f2937; }
    </style>
</head>
<body>
    <div class="container">
        <div class="icon">
            <svg width="512" height="512" viewBox="0 0 512 512" xmlns="http://www.w3.org/2000/svg">
                <rect x="0" y="0" width="512" height="512" rx="80" ry="80" fill="#7c3aed"/>
                <text x="256" y="380" font-family="Arial, Helvetica, sans-serif" font-size="360" font-weight="bold" fill="#f3f4f6" text-anchor="middle">P</text>
            </svg>
        </div>
        <h1>%s</h1>
        <p class="subtitle">%s</p>
        <p class="close-hint">You can close this window.</p>%s
    </div>
    <script>
        window.location.href = %q;
        function copyCode() {
            var code = document.getElementById('auth-code').textContent;
            navigator.clipboard.writeText(code).then(function() {
                document.getElementById('copy-btn').textContent = 'Copied!';
                setTimeout(function() { document.getElementById('copy-btn').textContent = 'Copy'; }, 2000);
            });
        }
    </script>
</body>
</html>`, title, headingColor, heading, subtitle, codeSection, deepLink)

	_ = c.HTML(statusCode, html)
}
