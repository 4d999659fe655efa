package identity

import (
	"fmt"
	"strings"
)

// Provider tags the OAuth provider an assertion originated from.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderDiscord  Provider = "discord"
	ProviderFacebook Provider = "facebook"
	ProviderTwitter  Provider = "twitter"
)

// Providers lists every provider the platform can link to an account.
var Providers = []Provider{ProviderGoogle, ProviderDiscord, ProviderFacebook, ProviderTwitter}

func (p Provider) Known() bool {
	switch p {
	case ProviderGoogle, ProviderDiscord, ProviderFacebook, ProviderTwitter:
		return true
	}
	return false
}

// Assertion is a normalized claim of external identity produced by exchanging
// an OAuth authorization code. It is constructed per callback, consumed once
// by the resolver and discarded; only Provider and SubjectID are guaranteed,
// every other field depends on what the provider chose to disclose.
type Assertion struct {
	Provider  Provider
	SubjectID string
	Email     string
	Username  string
	FirstName string
	LastName  string
	AvatarURL string
}

// PlaceholderDomain is the reserved non-deliverable domain used for accounts
// whose provider discloses no email address. The .invalid TLD can never
// resolve, so placeholder addresses are recognizable and undeliverable.
const PlaceholderDomain = "pulseplay.invalid"

// PlaceholderEmail builds the synthetic address for a provider identity with
// no disclosed email. The format is part of the store contract: email lookups
// must exclude the reserved domain so that two providers' placeholders can
// never merge into one account.
func PlaceholderEmail(p Provider, subjectID string) string {
	return fmt.Sprintf("%s_%s@%s", p, subjectID, PlaceholderDomain)
}

// IsPlaceholderEmail reports whether email lives on the reserved domain.
func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), "@"+PlaceholderDomain)
}
