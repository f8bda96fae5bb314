package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	content  []byte
	revision Revision
	message  string
}

// MemoryStore is an in-process Store used by tests and STORE_BACKEND=memory.
// Writes are compare-and-swap under a single mutex.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]*memoryEntry)}
}

func (m *MemoryStore) Fetch(ctx context.Context, name string) (Document, error) {
	if err := validName(name); err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store[name]
	if !ok {
		return Document{Name: name}, nil
	}
	return Document{Name: name, Content: clone(e.content), Revision: e.revision}, nil
}

func (m *MemoryStore) Put(ctx context.Context, name string, content json.RawMessage, expected Revision, message string) (Revision, error) {
	if err := validName(name); err != nil {
		return NoRevision, err
	}
	body, err := Encode(content)
	if err != nil {
		return NoRevision, err
	}
	if err := ctx.Err(); err != nil {
		return NoRevision, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current := NoRevision
	if e, ok := m.store[name]; ok {
		current = e.revision
	}
	if current != expected {
		return NoRevision, fmt.Errorf("%w: %s expected %q, current %q", ErrRevisionConflict, name, expected, current)
	}
	rev := Revision(uuid.NewString())
	m.store[name] = &memoryEntry{content: body, revision: rev, message: message}
	return rev, nil
}

// LastMessage returns the change description of the latest write.
func (m *MemoryStore) LastMessage(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.store[name]; ok {
		return e.message
	}
	return ""
}
