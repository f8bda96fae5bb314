// Package docstore reads and writes named JSON documents in a versioned remote store.
//
// Every document carries an opaque revision assigned by the store. A write must name
// the revision it last observed (NoRevision when creating); a stale revision is rejected
// with ErrRevisionConflict instead of overwriting a concurrent writer's change.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrRevisionConflict means the expected revision no longer matches the stored one.
	ErrRevisionConflict = errors.New("revision conflict")
	// ErrStoreUnavailable covers transport, permission and malformed-response failures.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrInvalidContent is returned before any remote call when content is not valid JSON.
	ErrInvalidContent = errors.New("invalid document content")
	// ErrInvalidName rejects empty or path-like document names.
	ErrInvalidName = errors.New("invalid document name")
)

// Revision identifies the exact content state of a document.
type Revision string

// NoRevision is the revision of a document that has never been written.
const NoRevision Revision = ""

func (r Revision) String() string { return string(r) }

// Document is a fetched document. Content is nil and Revision is NoRevision when
// the document does not exist.
type Document struct {
	Name     string
	Content  json.RawMessage
	Revision Revision
}

// Exists reports whether the store holds a revision of the document.
func (d Document) Exists() bool { return d.Revision != NoRevision }

// Store is the versioned key-value contract every backend implements.
type Store interface {
	// Fetch never fails for a missing document; it returns a Document with Exists() == false.
	Fetch(ctx context.Context, name string) (Document, error)
	// Put writes content if expected matches the current revision and returns the new revision.
	Put(ctx context.Context, name string, content json.RawMessage, expected Revision, message string) (Revision, error)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

func clone(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
