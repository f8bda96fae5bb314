package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/pkg/metrics"
)

// PaymentRecord is the payment state of one lesson. Status is a free-form label.
type PaymentRecord struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated"`
}

// Ledger maps a lesson key (calendar event id) to its payment record.
type Ledger map[string]PaymentRecord

// Ledgers loads the payment ledger and records payment changes.
type Ledgers struct {
	store docstore.Store
	now   func() time.Time
}

func NewLedgers(s docstore.Store) *Ledgers {
	return &Ledgers{store: s, now: time.Now}
}

// Load returns the ledger (empty when the document is absent) and its revision.
func (l *Ledgers) Load(ctx context.Context) (Ledger, docstore.Revision, error) {
	doc, err := l.store.Fetch(ctx, PaymentsDocument)
	if err != nil {
		return nil, docstore.NoRevision, fmt.Errorf("load payments: %w", err)
	}
	if !doc.Exists() {
		return Ledger{}, docstore.NoRevision, nil
	}
	var ledger Ledger
	if err := decode(doc, &ledger); err != nil {
		return nil, docstore.NoRevision, err
	}
	if ledger == nil {
		// stored as JSON null
		ledger = Ledger{}
	}
	return ledger, doc.Revision, nil
}

// RecordPayment sets the status of one lesson with a read-modify-write against the
// revision it just read. A concurrent writer in between makes the write fail with
// docstore.ErrRevisionConflict; the caller decides whether to re-read and retry, since
// retrying here could hide a change made to another lesson.
func (l *Ledgers) RecordPayment(ctx context.Context, lessonID, status string) (PaymentRecord, error) {
	lessonID = strings.TrimSpace(lessonID)
	status = strings.TrimSpace(status)
	if lessonID == "" {
		return PaymentRecord{}, invalid("lessonKey is required")
	}
	if status == "" {
		return PaymentRecord{}, invalid("status is required")
	}

	ledger, rev, err := l.Load(ctx)
	if err != nil {
		return PaymentRecord{}, err
	}
	rec := PaymentRecord{Status: status, UpdatedAt: l.now().UTC().Truncate(time.Millisecond)}
	ledger[lessonID] = rec

	body, err := docstore.Marshal(ledger)
	if err != nil {
		return PaymentRecord{}, err
	}
	msg := fmt.Sprintf("Set payment status of %s to %s", lessonID, status)
	_, err = l.store.Put(ctx, PaymentsDocument, body, rev, msg)
	metrics.PaymentsRecorded.WithLabelValues(docstore.Outcome(err)).Inc()
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("record payment: %w", err)
	}
	return rec, nil
}
