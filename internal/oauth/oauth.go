package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/pulseplay/pulseplay-api/internal/identity"
)

// Provider exchanges an authorization code for a normalized identity
// assertion. Every provider is consumed through this one shape; the
// resolver never sees provider-specific field names.
type Provider interface {
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*identity.Assertion, error)
	Name() string
}

func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
