package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/yuvalaufer/students-calander/pkg/logger"
	"github.com/yuvalaufer/students-calander/pkg/metrics"
	"go.uber.org/zap"
)

// timeoutStore bounds each call with its own deadline.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout returns a Store whose every Fetch/Put is cancelled after d.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

func (t *timeoutStore) Fetch(ctx context.Context, name string) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Fetch(ctx, name)
}

func (t *timeoutStore) Put(ctx context.Context, name string, content json.RawMessage, expected Revision, message string) (Revision, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Put(ctx, name, content, expected, message)
}

// instrumentedStore records Prometheus counters and latency for each call.
type instrumentedStore struct {
	next    Store
	backend string
}

// Instrumented wraps s with store metrics labelled by backend.
func Instrumented(s Store, backend string) Store {
	return &instrumentedStore{next: s, backend: backend}
}

func (i *instrumentedStore) Fetch(ctx context.Context, name string) (Document, error) {
	start := time.Now()
	doc, err := i.next.Fetch(ctx, name)
	metrics.StoreLatency.WithLabelValues(i.backend, "fetch").Observe(time.Since(start).Seconds())
	outcome := Outcome(err)
	if err == nil && !doc.Exists() {
		outcome = "absent"
	}
	metrics.StoreOperations.WithLabelValues(i.backend, "fetch", outcome).Inc()
	if err != nil {
		logger.L().Warn("document fetch failed", zap.String("backend", i.backend), zap.String("document", name), zap.Error(err))
	}
	return doc, err
}

func (i *instrumentedStore) Put(ctx context.Context, name string, content json.RawMessage, expected Revision, message string) (Revision, error) {
	start := time.Now()
	rev, err := i.next.Put(ctx, name, content, expected, message)
	metrics.StoreLatency.WithLabelValues(i.backend, "put").Observe(time.Since(start).Seconds())
	metrics.StoreOperations.WithLabelValues(i.backend, "put", Outcome(err)).Inc()
	switch {
	case err == nil:
		logger.L().Debug("document written", zap.String("document", name), zap.String("revision", rev.String()))
	case errors.Is(err, ErrRevisionConflict):
		logger.L().Warn("document write lost a revision race", zap.String("document", name), zap.String("expected", expected.String()))
	default:
		logger.L().Error("document write failed", zap.String("backend", i.backend), zap.String("document", name), zap.Error(err))
	}
	return rev, err
}

// Outcome classifies a store error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRevisionConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidContent), errors.Is(err, ErrInvalidName):
		return "invalid"
	case IsRateLimited(err):
		return "rate_limited"
	}
	return "unavailable"
}

// Archiver receives a copy of every committed revision.
type Archiver interface {
	Archive(ctx context.Context, name string, rev Revision, content []byte) error
}

type archivedStore struct {
	Store
	archiver Archiver
}

// Archived copies each successful write to a. Archive failures are logged, never returned:
// the write is already committed.
func Archived(s Store, a Archiver) Store {
	if a == nil {
		return s
	}
	return &archivedStore{Store: s, archiver: a}
}

func (a *archivedStore) Put(ctx context.Context, name string, content json.RawMessage, expected Revision, message string) (Revision, error) {
	rev, err := a.Store.Put(ctx, name, content, expected, message)
	if err != nil {
		return rev, err
	}
	body, encErr := Encode(content)
	if encErr == nil {
		encErr = a.archiver.Archive(ctx, name, rev, body)
	}
	if encErr != nil {
		logger.Warnf("archive %s@%s failed: %v", name, rev, encErr)
	}
	return rev, nil
}
