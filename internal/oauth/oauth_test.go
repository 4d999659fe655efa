package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/pulseplay/pulseplay-api/internal/config"
)

func TestGenerateState(t *testing.T) {
	state1, err := GenerateState()
	assert.NoError(t, err)
	assert.NotEmpty(t, state1)

	state2, err := GenerateState()
	assert.NoError(t, err)
	assert.NotEmpty(t, state2)

	// Each call should produce a different state
	assert.NotEqual(t, state1, state2)

	// State should be base64 URL encoded (44 chars for 32 bytes)
	assert.Len(t, state1, 44)
}

func TestProviders_NameAndConsentURL(t *testing.T) {
	cfg := config.OAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost/callback",
	}

	testCases := []struct {
		provider Provider
		name     string
		authHost string
	}{
		{NewGoogleProvider(cfg), "google", "accounts.google.com"},
		{NewDiscordProvider(cfg), "discord", "discord.com"},
		{NewFacebookProvider(cfg), "facebook", "facebook.com"},
		{NewTwitterProvider(cfg), "twitter", "twitter.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, tc.provider.Name())

			url := tc.provider.GetConsentURL("test-state")
			assert.Contains(t, url, tc.authHost)
			assert.Contains(t, url, "client_id=test-client-id")
			assert.Contains(t, url, "state=test-state")
		})
	}
}

func TestGoogleProvider_Scopes(t *testing.T) {
	provider := NewGoogleProvider(config.OAuthConfig{ClientID: "id"})

	assert.Contains(t, provider.config.Scopes, "https://www.googleapis.com/auth/userinfo.email")
	assert.Contains(t, provider.config.Scopes, "https://www.googleapis.com/auth/userinfo.profile")
}

func TestDiscordProvider_Scopes(t *testing.T) {
	provider := NewDiscordProvider(config.OAuthConfig{ClientID: "id"})

	assert.Contains(t, provider.config.Scopes, "identify")
	assert.Contains(t, provider.config.Scopes, "email")
}

func TestFacebookProvider_Scopes(t *testing.T) {
	provider := NewFacebookProvider(config.OAuthConfig{ClientID: "id"})

	assert.Contains(t, provider.config.Scopes, "email")
	assert.Contains(t, provider.config.Scopes, "public_profile")
}

func TestTwitterProvider_Scopes(t *testing.T) {
	provider := NewTwitterProvider(config.OAuthConfig{ClientID: "id"})

	assert.Contains(t, provider.config.Scopes, "users.read")
}

func TestSplitName(t *testing.T) {
	testCases := []struct {
		full  string
		first string
		last  string
	}{
		{"", "", ""},
		{"Cher", "Cher", ""},
		{"Jane Doe", "Jane", "Doe"},
		{"Juan de la Cruz", "Juan", "de la Cruz"},
	}

	for _, tc := range testCases {
		first, last := splitName(tc.full)
		assert.Equal(t, tc.first, first)
		assert.Equal(t, tc.last, last)
	}
}
