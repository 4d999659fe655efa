package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pulseplay/pulseplay-api/internal/config"
	"github.com/pulseplay/pulseplay-api/internal/identity"
	"golang.org/x/oauth2"
)

var twitterEndpoint = oauth2.Endpoint{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
}

type TwitterProvider struct {
	config *oauth2.Config
}

func NewTwitterProvider(cfg config.OAuthConfig) *TwitterProvider {
	return &TwitterProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"tweet.read", "users.read"},
			Endpoint:     twitterEndpoint,
		},
	}
}

func (p *TwitterProvider) Name() string {
	return string(identity.ProviderTwitter)
}

func (p *TwitterProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *TwitterProvider) ExchangeCode(ctx context.Context, code string) (*identity.Assertion, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := p.config.Client(ctx, token)

	resp, err := client.Get("https://api.twitter.com/2/users/me?user.fields=profile_image_url")
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter api returned status %d", resp.StatusCode)
	}

	var twResp struct {
		Data struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&twResp); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	firstName, lastName := splitName(twResp.Data.Name)

	// The v2 users endpoint never discloses an email, so twitter sign-ins
	// always land on the resolver's placeholder path for new accounts.
	return &identity.Assertion{
		Provider:  identity.ProviderTwitter,
		SubjectID: twResp.Data.ID,
		Username:  twResp.Data.Username,
		FirstName: firstName,
		LastName:  lastName,
		AvatarURL: twResp.Data.ProfileImageURL,
	}, nil
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
