package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer is the issuer of Google-signed ID tokens.
const GoogleIssuer = "https://accounts.google.com"

// ErrEmailNotVerified is returned for tokens whose email claim Google has not verified.
var ErrEmailNotVerified = errors.New("id token email is not verified")

// Verifier wraps the OIDC provider's ID token verifier
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the issuer's keys and returns a verifier bound to clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

type emailClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// VerifyEmail checks the raw ID token's signature, audience and expiry and returns
// its verified email address in lower case.
func (v *Verifier) VerifyEmail(ctx context.Context, raw string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return "", err
	}
	var c emailClaims
	if err := idToken.Claims(&c); err != nil {
		return "", fmt.Errorf("decode id token claims: %w", err)
	}
	if c.Email == "" || !c.EmailVerified {
		return "", ErrEmailNotVerified
	}
	return strings.ToLower(c.Email), nil
}
