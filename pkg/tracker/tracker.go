// Package tracker records every outbound backend call and answers windowed
// usage questions ("how many calls in the last hour"). The log is persisted
// to SQLite and pruned to a bounded retention window on open.
package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/autocode-ai/autocode/pkg/models"
)

// Retention bounds the persisted call log. Older records are pruned when the
// tracker is opened.
const Retention = 7 * 24 * time.Hour

// Tracker records and queries backend call usage.
type Tracker interface {
	// Record appends a call record to the persistent log.
	Record(ctx context.Context, op models.Operation, endpoint string, outcome models.Outcome) error
	// CountInWindow returns the number of calls in [now-window, now].
	CountInWindow(window time.Duration) (int, error)
	// IsApproachingLimit reports whether the call count in the backend's
	// window has reached (1 - buffer) of its request quota.
	IsApproachingLimit(cfg models.RateLimitConfig, buffer float64) (bool, error)
	// Summarize aggregates counts by operation and endpoint for the current
	// session and for the full retained log.
	Summarize(ctx context.Context) (session, log models.CallSummary, err error)
	// SessionID identifies the current harness run in the log.
	SessionID() string
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db        *sql.DB
	sessionID string
	now       func() time.Time
}

const createCallTable = `
CREATE TABLE IF NOT EXISTS call_records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	operation  TEXT NOT NULL,
	endpoint   TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_records_time ON call_records(created_at);
CREATE INDEX IF NOT EXISTS idx_call_records_session ON call_records(session_id);
`

// New opens the call log at dbPath, prunes records older than the retention
// window, and starts a new session.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createCallTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	t := &SQLiteTracker{
		db:        db,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
	if err := t.prune(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// SessionID identifies the current harness run.
func (t *SQLiteTracker) SessionID() string {
	return t.sessionID
}

// Record appends a call record. The record is persisted immediately so a
// crashed session still leaves an accurate log behind.
func (t *SQLiteTracker) Record(ctx context.Context, op models.Operation, endpoint string, outcome models.Outcome) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO call_records (session_id, operation, endpoint, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.sessionID, string(op), endpoint, string(outcome), t.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// CountInWindow returns the number of calls recorded in [now-window, now].
func (t *SQLiteTracker) CountInWindow(window time.Duration) (int, error) {
	cutoff := t.now().Add(-window).Unix()
	var n int
	err := t.db.QueryRow(
		`SELECT COUNT(*) FROM call_records WHERE created_at >= ?`, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

// IsApproachingLimit reports whether usage in the backend's window has
// reached (1 - buffer) of its quota. Always false for exempt backends.
func (t *SQLiteTracker) IsApproachingLimit(cfg models.RateLimitConfig, buffer float64) (bool, error) {
	if cfg.Exempt() {
		return false, nil
	}
	n, err := t.CountInWindow(cfg.Window)
	if err != nil {
		return false, err
	}
	return float64(n) >= float64(cfg.MaxRequests)*(1-buffer), nil
}

// Summarize aggregates call counts by operation and endpoint, for the
// current session and for the full retained log.
func (t *SQLiteTracker) Summarize(ctx context.Context) (session, log models.CallSummary, err error) {
	session, err = t.summarize(ctx, t.sessionID)
	if err != nil {
		return models.CallSummary{}, models.CallSummary{}, err
	}
	log, err = t.summarize(ctx, "")
	if err != nil {
		return models.CallSummary{}, models.CallSummary{}, err
	}
	return session, log, nil
}

func (t *SQLiteTracker) summarize(ctx context.Context, sessionID string) (models.CallSummary, error) {
	query := `SELECT operation, endpoint, COUNT(*) FROM call_records`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY operation, endpoint`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.CallSummary{}, fmt.Errorf("summarize calls: %w", err)
	}
	defer rows.Close()

	s := models.CallSummary{
		Operations: make(map[string]int),
		Endpoints:  make(map[string]int),
	}
	for rows.Next() {
		var op, endpoint string
		var n int
		if err := rows.Scan(&op, &endpoint, &n); err != nil {
			return models.CallSummary{}, fmt.Errorf("scan call summary: %w", err)
		}
		s.TotalCalls += n
		s.Operations[op] += n
		s.Endpoints[endpoint] += n
	}
	return s, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}

func (t *SQLiteTracker) prune() error {
	cutoff := t.now().Add(-Retention).Unix()
	if _, err := t.db.Exec(`DELETE FROM call_records WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune call log: %w", err)
	}
	return nil
}
