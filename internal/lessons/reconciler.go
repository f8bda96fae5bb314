// Package lessons joins the tutor's calendar events with the payment ledger.
package lessons

import (
	"context"
	"fmt"
	"time"

	"github.com/yuvalaufer/students-calander/internal/auth"
	"github.com/yuvalaufer/students-calander/internal/calendar"
	"github.com/yuvalaufer/students-calander/internal/repository"
	"github.com/yuvalaufer/students-calander/pkg/metrics"
	"golang.org/x/oauth2"
)

// StatusNotPaid is reported for lessons with no ledger entry.
const StatusNotPaid = "not yet paid"

// MergedLesson is a calendar event with its payment status. LessonKey is the event id
// and is the key to pass back when recording a payment.
type MergedLesson struct {
	LessonKey        string     `json:"lessonKey"`
	ID               string     `json:"id"`
	Summary          string     `json:"summary"`
	Description      string     `json:"description,omitempty"`
	Location         string     `json:"location,omitempty"`
	Start            time.Time  `json:"start"`
	End              time.Time  `json:"end"`
	AllDay           bool       `json:"allDay"`
	PaymentStatus    string     `json:"paymentStatus"`
	PaymentUpdatedAt *time.Time `json:"paymentUpdated,omitempty"`
}

// EventSource lists calendar events in a window, ordered by start.
type EventSource interface {
	ListEvents(ctx context.Context, ts oauth2.TokenSource, start, end time.Time) ([]calendar.Event, error)
}

// Credentials yields a token source for the tutor's calendar.
type Credentials interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

type Reconciler struct {
	creds  Credentials
	events EventSource
	ledger *repository.Ledgers
}

func NewReconciler(creds Credentials, events EventSource, ledger *repository.Ledgers) *Reconciler {
	return &Reconciler{creds: creds, events: events, ledger: ledger}
}

// ListUpcoming returns the lessons in [start, end) in calendar order. It fails with
// auth.ErrNotAuthenticated before touching the calendar or the ledger when no
// credential exists.
func (r *Reconciler) ListUpcoming(ctx context.Context, start, end time.Time) ([]MergedLesson, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: window end must be after start", repository.ErrInvalidInput)
	}
	ts, err := r.creds.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	events, err := r.events.ListEvents(ctx, ts, start, end)
	if err != nil {
		return nil, err
	}
	ledger, _, err := r.ledger.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MergedLesson, 0, len(events))
	for _, ev := range events {
		m := MergedLesson{
			LessonKey:     ev.ID,
			ID:            ev.ID,
			Summary:       ev.Summary,
			Description:   ev.Description,
			Location:      ev.Location,
			Start:         ev.Start,
			End:           ev.End,
			AllDay:        ev.AllDay,
			PaymentStatus: StatusNotPaid,
		}
		if rec, ok := ledger[ev.ID]; ok && rec.Status != "" {
			m.PaymentStatus = rec.Status
			if !rec.UpdatedAt.IsZero() {
				updated := rec.UpdatedAt
				m.PaymentUpdatedAt = &updated
			}
		}
		out = append(out, m)
	}
	metrics.LessonsReconciled.Add(float64(len(out)))
	return out, nil
}

var _ Credentials = (*auth.Lifecycle)(nil)
var _ EventSource = (*calendar.GoogleSource)(nil)
