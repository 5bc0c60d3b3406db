package db

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Ledger records events for a single run. A nil *Ledger discards everything,
// so callers never need to check whether persistence is configured.
type Ledger struct {
	db     *sql.DB
	runID  string
	logger *slog.Logger
}

// NewRunID returns a time-ordered run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewLedger starts a ledger under a fresh run id.
func NewLedger(db *sql.DB, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{db: db, runID: NewRunID(), logger: logger}
}

// RunID is the identifier stamped on every event this ledger writes.
func (l *Ledger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// DB exposes the underlying connection for queries scoped to this run.
func (l *Ledger) DB() *sql.DB {
	if l == nil {
		return nil
	}
	return l.db
}

// Record writes ev under this ledger's run id. Failures are logged, never returned:
// losing an audit row must not fail an extraction.
func (l *Ledger) Record(ctx context.Context, ev Event) {
	if l == nil || l.db == nil {
		return
	}
	ev.RunID = l.runID
	// Persist even when the job context was cancelled so the failure itself is recorded.
	if err := LogFileEvent(context.WithoutCancel(ctx), l.db, ev); err != nil {
		l.logger.Warn("Failed to record event.", slog.String("event", ev.Event), slog.String("path", ev.Path), slog.Any("error", err))
	}
}
