// Package repository maps the three JSON documents of the system (roster, payment
// ledger and credential record) to typed values. Defaults are filled here and only
// here, so every consumer sees fully populated records.
package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuvalaufer/students-calander/internal/docstore"
)

// Document names in the store.
const (
	StudentsDocument    = "students"
	PaymentsDocument    = "payments"
	CredentialsDocument = "credentials"
)

// ErrInvalidInput is returned before any store interaction when caller data fails validation.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// decode unmarshals a stored document; a document that exists but does not match
// the expected shape is reported as a malformed remote response.
func decode(doc docstore.Document, v interface{}) error {
	if err := json.Unmarshal(doc.Content, v); err != nil {
		return fmt.Errorf("%w: %s document is malformed: %v", docstore.ErrStoreUnavailable, doc.Name, err)
	}
	return nil
}

// looseString accepts either a JSON string or a JSON number; older documents
// carry numeric ids.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

// Validate checks content written outside the repositories (operator tooling) against
// the shape the named document must have. Names other than the three documents are
// not checked.
func Validate(name string, content []byte) error {
	if !json.Valid(content) {
		return fmt.Errorf("%w: %s is not valid JSON", docstore.ErrInvalidContent, name)
	}
	switch name {
	case StudentsDocument:
		var stored []storedStudent
		if err := json.Unmarshal(content, &stored); err != nil {
			return invalid("students: %v", err)
		}
		if stored == nil {
			return invalid("students must be a list")
		}
		for i, s := range stored {
			if strings.TrimSpace(s.Name) == "" {
				return invalid("student %d has no name", i)
			}
			if !validPrice(s.Price) {
				return invalid("student %q has an invalid price", s.Name)
			}
		}
	case PaymentsDocument:
		var ledger Ledger
		if err := json.Unmarshal(content, &ledger); err != nil {
			return invalid("payments: %v", err)
		}
		for id, rec := range ledger {
			if strings.TrimSpace(id) == "" {
				return invalid("payments: empty lesson key")
			}
			if strings.TrimSpace(rec.Status) == "" {
				return invalid("payments: lesson %q has no status", id)
			}
		}
	case CredentialsDocument:
		var stored storedCredential
		if err := json.Unmarshal(content, &stored); err != nil {
			return invalid("credentials: %v", err)
		}
		if strings.TrimSpace(stored.RefreshToken) == "" {
			return invalid("refresh token is required")
		}
	}
	return nil
}
