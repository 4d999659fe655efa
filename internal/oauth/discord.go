package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pulseplay/pulseplay-api/internal/config"
	"github.com/pulseplay/pulseplay-api/internal/identity"
	"golang.org/x/oauth2"
)

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

type DiscordProvider struct {
	config *oauth2.Config
}

func NewDiscordProvider(cfg config.OAuthConfig) *DiscordProvider {
	return &DiscordProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     discordEndpoint,
		},
	}
}

func (p *DiscordProvider) Name() string {
	return string(identity.ProviderDiscord)
}

func (p *DiscordProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *DiscordProvider) ExchangeCode(ctx context.Context, code string) (*identity.Assertion, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := p.config.Client(ctx, token)

	resp, err := client.Get("https://discord.com/api/users/@me")
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord api returned status %d", resp.StatusCode)
	}

	var dUser struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Email      string `json:"email"`
		Verified   bool   `json:"verified"`
		Avatar     string `json:"avatar"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&dUser); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	// Unverified addresses are dropped: the resolver links accounts by
	// email, so only addresses discord has confirmed may participate.
	email := dUser.Email
	if !dUser.Verified {
		email = ""
	}

	var avatarURL string
	if dUser.Avatar != "" {
		avatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", dUser.ID, dUser.Avatar)
	}

	firstName := dUser.GlobalName
	if firstName == "" {
		firstName = dUser.Username
	}

	return &identity.Assertion{
		Provider:  identity.ProviderDiscord,
		SubjectID: dUser.ID,
		Email:     email,
		Username:  dUser.Username,
		FirstName: firstName,
		AvatarURL: avatarURL,
	}, nil
}
