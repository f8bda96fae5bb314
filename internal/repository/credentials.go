package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yuvalaufer/students-calander/internal/docstore"
)

// CredentialRecord is the persisted refresh credential. It is only ever replaced
// as a whole.
type CredentialRecord struct {
	RefreshToken string
	Scope        string
	TokenType    string
	// Expiry is the access-token expiry reported with the credential; zero when unknown.
	Expiry time.Time
}

type storedCredential struct {
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiryDate   *int64 `json:"expiry_date,omitempty"` // epoch milliseconds
}

// CredentialRecords loads and replaces the credential record.
type CredentialRecords struct {
	store docstore.Store
}

func NewCredentialRecords(s docstore.Store) *CredentialRecords {
	return &CredentialRecords{store: s}
}

// Load returns nil when no credential has been stored. A stored record without a
// refresh token is treated as absent.
func (c *CredentialRecords) Load(ctx context.Context) (*CredentialRecord, error) {
	doc, err := c.store.Fetch(ctx, CredentialsDocument)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if !doc.Exists() {
		return nil, nil
	}
	var stored storedCredential
	if err := decode(doc, &stored); err != nil {
		return nil, err
	}
	if strings.TrimSpace(stored.RefreshToken) == "" {
		return nil, nil
	}
	rec := &CredentialRecord{
		RefreshToken: stored.RefreshToken,
		Scope:        stored.Scope,
		TokenType:    stored.TokenType,
	}
	if stored.ExpiryDate != nil {
		rec.Expiry = time.UnixMilli(*stored.ExpiryDate).UTC()
	}
	return rec, nil
}

// Save replaces the stored record. It reads the current revision first, so a
// concurrent replacement surfaces as docstore.ErrRevisionConflict.
func (c *CredentialRecords) Save(ctx context.Context, rec CredentialRecord) error {
	if strings.TrimSpace(rec.RefreshToken) == "" {
		return invalid("refresh token is required")
	}
	stored := storedCredential{
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
		TokenType:    rec.TokenType,
	}
	if !rec.Expiry.IsZero() {
		ms := rec.Expiry.UnixMilli()
		stored.ExpiryDate = &ms
	}
	body, err := docstore.Marshal(stored)
	if err != nil {
		return err
	}

	doc, err := c.store.Fetch(ctx, CredentialsDocument)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	if _, err := c.store.Put(ctx, CredentialsDocument, body, doc.Revision, "Replace calendar credential"); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}
