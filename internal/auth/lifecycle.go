// Package auth holds the tutor's calendar authorization and moves it through its
// lifecycle: seeded from configuration, recovered from the credential document, or
// replaced by a completed Google consent.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yuvalaufer/students-calander/internal/config"
	"github.com/yuvalaufer/students-calander/internal/repository"
	"github.com/yuvalaufer/students-calander/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

var (
	// ErrNotAuthenticated means no refresh credential is configured, held or stored.
	ErrNotAuthenticated = errors.New("calendar access is not authorized")
	// ErrNoRefreshToken means the consent exchange succeeded without issuing a refresh token.
	ErrNoRefreshToken = errors.New("authorization response carried no refresh token")
	// ErrWrongAccount means the consenting Google account is not the configured tutor.
	ErrWrongAccount = errors.New("signed-in account is not the tutor")
	// ErrExchange wraps failures of the authorization code exchange.
	ErrExchange = errors.New("authorization code exchange failed")
)

// Where a held credential came from.
const (
	SourceConfig  = "config"
	SourceStore   = "store"
	SourceConsent = "consent"
	SourceRefresh = "refresh"
)

// Credential is the refresh credential used to reach the calendar.
type Credential struct {
	RefreshToken string
	Scope        string
	TokenType    string
	Expiry       time.Time
	Source       string
}

// Holder is the process-wide authorization context. Last writer wins.
type Holder struct {
	mu   sync.RWMutex
	cred *Credential
}

func NewHolder() *Holder { return &Holder{} }

func (h *Holder) Get() (Credential, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cred == nil {
		return Credential{}, false
	}
	return *h.cred, true
}

func (h *Holder) Set(c Credential) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cred = &c
}

// setIfEmpty stores c unless a credential is already held, and returns the held one.
func (h *Holder) setIfEmpty(c Credential) Credential {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cred == nil {
		h.cred = &c
	}
	return *h.cred
}

// CredentialStore is the persisted credential record.
type CredentialStore interface {
	Load(ctx context.Context) (*repository.CredentialRecord, error)
	Save(ctx context.Context, rec repository.CredentialRecord) error
}

// IdentityVerifier checks a raw ID token and returns its verified email.
type IdentityVerifier interface {
	VerifyEmail(ctx context.Context, rawIDToken string) (string, error)
}

// NewOAuthConfig builds the Google OAuth client for read access to the calendar. The
// openid and email scopes are requested only when the consenting account must be checked.
func NewOAuthConfig(g config.GoogleConfig) *oauth2.Config {
	scopes := []string{calendar.CalendarReadonlyScope}
	if g.TutorEmail != "" {
		scopes = append(scopes, "openid", "email")
	}
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// Lifecycle resolves the current credential and completes consent round-trips.
type Lifecycle struct {
	holder     *Holder
	records    CredentialStore
	oauth      *oauth2.Config
	httpClient *http.Client
	verifier   IdentityVerifier
	tutorEmail string

	mu        sync.Mutex
	source    oauth2.TokenSource
	sourceFor string
}

// NewLifecycle seeds the holder from a configured refresh token, if any. No store read
// happens here.
func NewLifecycle(holder *Holder, records CredentialStore, oc *oauth2.Config, configuredToken string) *Lifecycle {
	if tok := strings.TrimSpace(configuredToken); tok != "" {
		holder.Set(Credential{RefreshToken: tok, Source: SourceConfig})
		logger.Infof("calendar credential loaded from configuration (%s)", Mask(tok))
	}
	return &Lifecycle{holder: holder, records: records, oauth: oc}
}

// WithVerifier restricts Complete to ID tokens whose verified email is tutorEmail. With
// a tutorEmail and a nil v every consent is refused.
func (l *Lifecycle) WithVerifier(v IdentityVerifier, tutorEmail string) *Lifecycle {
	l.verifier = v
	l.tutorEmail = strings.ToLower(strings.TrimSpace(tutorEmail))
	return l
}

// WithHTTPClient routes token exchange and refresh through c.
func (l *Lifecycle) WithHTTPClient(c *http.Client) *Lifecycle {
	l.httpClient = c
	return l
}

func (l *Lifecycle) clientContext(ctx context.Context) context.Context {
	if l.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, l.httpClient)
}

// Current returns the held credential, falling back to the stored record. It never
// writes to the store.
func (l *Lifecycle) Current(ctx context.Context) (Credential, error) {
	if c, ok := l.holder.Get(); ok {
		return c, nil
	}
	rec, err := l.records.Load(ctx)
	if err != nil {
		return Credential{}, err
	}
	if rec == nil {
		return Credential{}, ErrNotAuthenticated
	}
	return l.holder.setIfEmpty(Credential{
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
		TokenType:    rec.TokenType,
		Expiry:       rec.Expiry,
		Source:       SourceStore,
	}), nil
}

// TokenSource returns a refreshing token source for the current credential. One source
// is kept per refresh token, so access tokens are reused until they expire. The source
// outlives ctx and is bound to a background context.
func (l *Lifecycle) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	c, err := l.Current(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.source != nil && l.sourceFor == c.RefreshToken {
		return l.source, nil
	}
	tok := &oauth2.Token{RefreshToken: c.RefreshToken, TokenType: c.TokenType}
	l.source = &rotatingSource{
		lifecycle: l,
		base:      l.oauth.TokenSource(l.clientContext(context.Background()), tok),
		current:   c.RefreshToken,
	}
	l.sourceFor = c.RefreshToken
	return l.source, nil
}

// rotatingSource notices when a refresh answers with a new refresh token.
type rotatingSource struct {
	lifecycle *Lifecycle
	base      oauth2.TokenSource

	mu      sync.Mutex
	current string
}

func (s *rotatingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.RefreshToken != "" && tok.RefreshToken != s.current {
		s.current = tok.RefreshToken
		s.lifecycle.rotated(s, tok)
	}
	return tok, nil
}

// rotated replaces the credential with a refresh token issued during a refresh. The
// new token is held even if persisting it fails, since the old one may be revoked.
func (l *Lifecycle) rotated(src *rotatingSource, tok *oauth2.Token) {
	scope, _ := tok.Extra("scope").(string)
	rec := repository.CredentialRecord{
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := l.records.Save(ctx, rec); err != nil {
		logger.Errorf("failed to persist rotated calendar credential (%s): %v", Mask(rec.RefreshToken), err)
	}
	l.holder.Set(Credential{
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
		TokenType:    rec.TokenType,
		Expiry:       rec.Expiry,
		Source:       SourceRefresh,
	})
	l.mu.Lock()
	if l.source == src {
		l.sourceFor = rec.RefreshToken
	}
	l.mu.Unlock()
	logger.Infof("calendar credential rotated on refresh (%s)", Mask(rec.RefreshToken))
}

// AuthCodeURL is the consent URL. Offline access with forced consent makes Google
// issue a refresh token every time.
func (l *Lifecycle) AuthCodeURL(state string) string {
	return l.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Complete exchanges an authorization code, persists the resulting credential and
// then makes it current. Nothing is persisted or held on any failure.
func (l *Lifecycle) Complete(ctx context.Context, code string) (Credential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Credential{}, fmt.Errorf("%w: authorization code is required", repository.ErrInvalidInput)
	}
	if l.tutorEmail != "" && l.verifier == nil {
		return Credential{}, fmt.Errorf("%w: the tutor account cannot be verified", ErrWrongAccount)
	}
	tok, err := l.oauth.Exchange(l.clientContext(ctx), code)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	if l.tutorEmail != "" {
		raw, _ := tok.Extra("id_token").(string)
		if raw == "" {
			return Credential{}, fmt.Errorf("%w: no id_token in response", ErrWrongAccount)
		}
		email, err := l.verifier.VerifyEmail(ctx, raw)
		if err != nil {
			return Credential{}, fmt.Errorf("%w: %w", ErrWrongAccount, err)
		}
		if email != l.tutorEmail {
			logger.Warnf("consent from %s rejected; expected tutor account", email)
			return Credential{}, ErrWrongAccount
		}
	}

	if tok.RefreshToken == "" {
		return Credential{}, ErrNoRefreshToken
	}
	scope, _ := tok.Extra("scope").(string)
	rec := repository.CredentialRecord{
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if err := l.records.Save(ctx, rec); err != nil {
		return Credential{}, fmt.Errorf("persist credential: %w", err)
	}

	c := Credential{
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
		TokenType:    rec.TokenType,
		Expiry:       rec.Expiry,
		Source:       SourceConsent,
	}
	l.holder.Set(c)
	logger.Infof("calendar credential replaced via consent (%s)", Mask(c.RefreshToken))
	return c, nil
}

// Authenticated reports whether a credential is held right now. It does not consult
// the store.
func (l *Lifecycle) Authenticated() bool {
	_, ok := l.holder.Get()
	return ok
}

// Mask shortens a secret to its last four characters for logs.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
