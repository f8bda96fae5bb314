package repository

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/yuvalaufer/students-calander/internal/docstore"
)

// DefaultPrice is the lesson price assumed for students stored without one.
const DefaultPrice = 170.0

// Student is a roster entry as every consumer sees it: Price is always set.
type Student struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// StudentInput is a roster entry as submitted by a caller. A nil Price is stored as
// absent and read back as DefaultPrice; an empty ID is replaced with a new UUID.
type StudentInput struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

type storedStudent struct {
	ID    looseString `json:"id"`
	Name  string      `json:"name"`
	Price *float64    `json:"price,omitempty"`
}

// Rosters loads and saves the ordered student roster.
type Rosters struct {
	store docstore.Store
}

func NewRosters(s docstore.Store) *Rosters {
	return &Rosters{store: s}
}

// Load returns the roster in stored order (empty when the document is absent) and
// the revision to pass to Save.
func (r *Rosters) Load(ctx context.Context) ([]Student, docstore.Revision, error) {
	doc, err := r.store.Fetch(ctx, StudentsDocument)
	if err != nil {
		return nil, docstore.NoRevision, fmt.Errorf("load roster: %w", err)
	}
	if !doc.Exists() {
		return []Student{}, docstore.NoRevision, nil
	}
	var stored []storedStudent
	if err := decode(doc, &stored); err != nil {
		return nil, docstore.NoRevision, err
	}
	out := make([]Student, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.toStudent())
	}
	return out, doc.Revision, nil
}

// Save replaces the roster if expected is still the current revision. A nil slice is
// not a roster and is rejected; an empty one clears it.
func (r *Rosters) Save(ctx context.Context, students []StudentInput, expected docstore.Revision) ([]Student, docstore.Revision, error) {
	if students == nil {
		return nil, docstore.NoRevision, invalid("students must be a list")
	}
	stored := make([]storedStudent, 0, len(students))
	for i, in := range students {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, docstore.NoRevision, invalid("student %d has no name", i)
		}
		if !validPrice(in.Price) {
			return nil, docstore.NoRevision, invalid("student %q has an invalid price", name)
		}
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = uuid.NewString()
		}
		stored = append(stored, storedStudent{ID: looseString(id), Name: name, Price: in.Price})
	}

	body, err := docstore.Marshal(stored)
	if err != nil {
		return nil, docstore.NoRevision, err
	}
	msg := fmt.Sprintf("Update student roster (%d students)", len(stored))
	rev, err := r.store.Put(ctx, StudentsDocument, body, expected, msg)
	if err != nil {
		return nil, docstore.NoRevision, fmt.Errorf("save roster: %w", err)
	}
	out := make([]Student, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.toStudent())
	}
	return out, rev, nil
}

func validPrice(p *float64) bool {
	return p == nil || (*p >= 0 && !math.IsNaN(*p) && !math.IsInf(*p, 0))
}

func (s storedStudent) toStudent() Student {
	price := DefaultPrice
	if s.Price != nil {
		price = *s.Price
	}
	return Student{ID: string(s.ID), Name: s.Name, Price: price}
}
