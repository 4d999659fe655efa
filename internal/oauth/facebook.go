package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pulseplay/pulseplay-api/internal/config"
	"github.com/pulseplay/pulseplay-api/internal/identity"
	"golang.org/x/oauth2"
)

var facebookEndpoint = oauth2.Endpoint{
	AuthURL:  "https://www.facebook.com/v18.0/dialog/oauth",
	TokenURL: "https://graph.facebook.com/v18.0/oauth/access_token",
}

type FacebookProvider struct {
	config *oauth2.Config
}

func NewFacebookProvider(cfg config.OAuthConfig) *FacebookProvider {
	return &FacebookProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebookEndpoint,
		},
	}
}

func (p *FacebookProvider) Name() string {
	return string(identity.ProviderFacebook)
}

func (p *FacebookProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *FacebookProvider) ExchangeCode(ctx context.Context, code string) (*identity.Assertion, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := p.config.Client(ctx, token)

	fields := url.Values{"fields": {"id,email,first_name,last_name,picture.type(large)"}}
	resp, err := client.Get("https://graph.facebook.com/v18.0/me?" + fields.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook api returned status %d", resp.StatusCode)
	}

	// Email is absent when the account was registered by phone number.
	var fbUser struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Picture   struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&fbUser); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &identity.Assertion{
		Provider:  identity.ProviderFacebook,
		SubjectID: fbUser.ID,
		Email:     fbUser.Email,
		FirstName: fbUser.FirstName,
		LastName:  fbUser.LastName,
		AvatarURL: fbUser.Picture.Data.URL,
	}, nil
}
