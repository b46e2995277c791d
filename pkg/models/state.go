package models

// SessionMode is the kind of agent session the scheduler picks next.
type SessionMode string

const (
	ModeInitialize SessionMode = "initialize"
	ModeCode       SessionMode = "code"
	ModeAudit      SessionMode = "audit"
)

// ProjectState is the durable harness state for one project directory,
// persisted as JSON alongside the project. RateWindows carries the
// rate-limit governor's anchors per backend so a restarted process can
// recompute the remaining wait instead of waiting a full window again.
type ProjectState struct {
	Initialized           bool   `json:"initialized"`
	AdapterType           string `json:"adapter_type,omitempty"`
	ProjectID             string `json:"project_id,omitempty"`
	MetaIssueID           string `json:"meta_issue_id,omitempty"`
	TotalIssues           int    `json:"total_issues"`
	FeaturesAwaitingAudit int    `json:"features_awaiting_audit"`
	LegacyUnlabeledDone   int    `json:"legacy_unlabeled_done"`
	AuditsCompleted       int    `json:"audits_completed"`

	RateWindows map[string]RateWindowState `json:"rate_windows,omitempty"`
}

// PendingAudit is the number of completed items waiting on a quality review.
// Legacy items (done before audit tracking existed) count toward the audit
// threshold alongside freshly completed features.
func (s *ProjectState) PendingAudit() int {
	return s.FeaturesAwaitingAudit + s.LegacyUnlabeledDone
}
