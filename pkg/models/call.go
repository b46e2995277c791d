package models

import "time"

// Operation is the kind of backend call being made.
type Operation string

const (
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// IsRead reports whether the operation is a read (cacheable) operation.
func (o Operation) IsRead() bool {
	return o == OpList || o == OpGet
}

// Outcome is the result classification of a backend call.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

// CallRecord is one outbound backend call. Records are append-only and
// retained for a bounded window.
type CallRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Operation Operation `json:"operation"`
	Endpoint  string    `json:"endpoint"`
	Outcome   Outcome   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// CallSummary aggregates call counts by operation and endpoint over a scope
// (the current session or the full retained log).
type CallSummary struct {
	TotalCalls int            `json:"total_calls"`
	Operations map[string]int `json:"operations"`
	Endpoints  map[string]int `json:"endpoints"`
}
