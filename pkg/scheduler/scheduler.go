// Package scheduler decides which kind of agent session runs next and keeps
// the audit bookkeeping consistent with the backend's ground truth.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/autocode-ai/autocode/pkg/backend"
	"github.com/autocode-ai/autocode/pkg/models"
)

// DefaultAuditThreshold is the number of completed-but-unaudited items that
// triggers an audit session.
const DefaultAuditThreshold = 10

// Scheduler picks the next session mode from persisted project state and
// maintains the audit counters around issue completion.
type Scheduler struct {
	store     *Store
	threshold int
	logf      func(format string, args ...any)
}

// New creates a Scheduler over the given state store. A threshold of zero or
// less falls back to the default.
func New(store *Store, threshold int) *Scheduler {
	if threshold <= 0 {
		threshold = DefaultAuditThreshold
	}
	return &Scheduler{
		store:     store,
		threshold: threshold,
		logf:      log.Printf,
	}
}

// Store returns the underlying state store.
func (s *Scheduler) Store() *Store { return s.store }

// Threshold returns the effective audit threshold.
func (s *Scheduler) Threshold() int { return s.threshold }

// ChoosePriority picks the next session mode. Initialization always comes
// first; once initialized, audits preempt coding whenever enough completed
// work has piled up unreviewed.
func (s *Scheduler) ChoosePriority(st *models.ProjectState) models.SessionMode {
	if !st.Initialized {
		return models.ModeInitialize
	}
	if st.PendingAudit() >= s.threshold {
		return models.ModeAudit
	}
	return models.ModeCode
}

// Decide loads the current state and picks the next session mode.
func (s *Scheduler) Decide() (models.SessionMode, *models.ProjectState, error) {
	st, err := s.store.Load()
	if err != nil {
		return "", nil, err
	}
	return s.ChoosePriority(st), st, nil
}

// MarkInitialized records that project setup completed, along with the
// identifiers the coding sessions need.
func (s *Scheduler) MarkInitialized(adapterType, projectID, metaIssueID string, totalIssues int) error {
	return s.store.Update(func(st *models.ProjectState) error {
		st.Initialized = true
		st.AdapterType = adapterType
		st.ProjectID = projectID
		st.MetaIssueID = metaIssueID
		st.TotalIssues = totalIssues
		return nil
	})
}

// CloseIssueForAudit marks an issue done and labels it awaiting-audit. The
// sequence is idempotent: the label is re-checked against the backend before
// being added, and the pending-audit counter moves only when this call is the
// one that actually attached the label. A failed completion comment is logged
// but does not fail the close.
func (s *Scheduler) CloseIssueForAudit(ctx context.Context, client *backend.Client, issueID, comment string) error {
	done := models.StatusDone
	if _, err := client.UpdateIssue(ctx, issueID, models.IssueUpdate{Status: &done}); err != nil {
		return fmt.Errorf("close issue %s: %w", issueID, err)
	}

	// Re-fetch after the status write so the label check sees ground truth,
	// not a cached copy from before a previous partial attempt.
	iss, err := client.GetIssue(ctx, issueID)
	if err != nil {
		return fmt.Errorf("recheck issue %s: %w", issueID, err)
	}

	if !iss.HasLabel(backend.LabelAwaitingAudit) {
		label, err := client.EnsureLabel(ctx, backend.LabelAwaitingAudit, "#F2994A", "Completed, waiting on a quality review")
		if err != nil {
			return fmt.Errorf("ensure audit label: %w", err)
		}
		if _, err := client.UpdateIssue(ctx, issueID, models.IssueUpdate{AddLabelIDs: []string{label.ID}}); err != nil {
			return fmt.Errorf("label issue %s: %w", issueID, err)
		}
		if err := s.store.Update(func(st *models.ProjectState) error {
			st.FeaturesAwaitingAudit++
			return nil
		}); err != nil {
			return err
		}
	}

	if comment != "" {
		if _, err := client.CreateComment(ctx, issueID, comment); err != nil {
			s.logf("completion comment on %s failed: %v", issueID, err)
		}
	}
	return nil
}

// ResolveAudited records that n items passed audit. Legacy items, completed
// before audit tracking existed, are drained first; only then does the
// freshly-labeled counter go down.
func (s *Scheduler) ResolveAudited(n int) error {
	if n <= 0 {
		return nil
	}
	return s.store.Update(func(st *models.ProjectState) error {
		for i := 0; i < n; i++ {
			switch {
			case st.LegacyUnlabeledDone > 0:
				st.LegacyUnlabeledDone--
			case st.FeaturesAwaitingAudit > 0:
				st.FeaturesAwaitingAudit--
			}
		}
		st.AuditsCompleted++
		return nil
	})
}

// Reconcile replaces the persisted audit counters with counts derived from
// the backend's labeled issues, correcting drift from crashed sessions. Done
// issues carrying neither audit label are legacy items.
func (s *Scheduler) Reconcile(ctx context.Context, client *backend.Client) error {
	st, err := s.store.Load()
	if err != nil {
		return err
	}
	if !st.Initialized || st.ProjectID == "" {
		return nil
	}

	issues, err := client.ListIssues(ctx, models.IssueFilter{
		ProjectID: st.ProjectID,
		Status:    models.StatusDone,
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	awaiting, legacy := 0, 0
	for i := range issues {
		switch {
		case issues[i].HasLabel(backend.LabelAwaitingAudit):
			awaiting++
		case issues[i].HasLabel(backend.LabelAudited):
		default:
			legacy++
		}
	}

	return s.store.Update(func(st *models.ProjectState) error {
		if st.FeaturesAwaitingAudit != awaiting || st.LegacyUnlabeledDone != legacy {
			s.logf("reconcile: awaiting-audit %d -> %d, legacy %d -> %d",
				st.FeaturesAwaitingAudit, awaiting, st.LegacyUnlabeledDone, legacy)
		}
		st.FeaturesAwaitingAudit = awaiting
		st.LegacyUnlabeledDone = legacy
		return nil
	})
}
