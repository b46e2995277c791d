// Package backend defines the generic task-tracking interface the harness is
// written against, and the gated client that routes every call through the
// response cache, the call tracker, and the rate-limit governor.
package backend

import (
	"context"

	"github.com/autocode-ai/autocode/pkg/models"
)

// Well-known label names the harness relies on for audit tracking.
const (
	LabelAwaitingAudit = "awaiting-audit"
	LabelAudited       = "audited"
)

// TaskBackend is the minimal capability surface a concrete tracker adapter
// must provide. The cache, governor, and tracker layers are written against
// this interface and never special-case a specific backend.
type TaskBackend interface {
	// Name identifies the adapter ("linear", "github", "memory", ...).
	Name() string

	// RateLimit returns the backend's quota configuration, consumed by the
	// rate-limit governor. A zero MaxRequests means no limiting.
	RateLimit() models.RateLimitConfig

	ListTeams(ctx context.Context) ([]models.Team, error)

	CreateProject(ctx context.Context, name string, teamIDs []string, description string) (*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, teamID string) ([]models.Project, error)

	CreateLabel(ctx context.Context, name, color, description string) (*models.Label, error)
	ListLabels(ctx context.Context) ([]models.Label, error)

	CreateIssue(ctx context.Context, in models.IssueCreate) (*models.Issue, error)
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	UpdateIssue(ctx context.Context, id string, in models.IssueUpdate) (*models.Issue, error)
	ListIssues(ctx context.Context, filter models.IssueFilter) ([]models.Issue, error)

	CreateComment(ctx context.Context, issueID, body string) (*models.Comment, error)
	ListComments(ctx context.Context, issueID string) ([]models.Comment, error)

	// TestConnection verifies the adapter can reach its backend.
	TestConnection(ctx context.Context) error
}

// WithRateLimit wraps b so RateLimit reports cfg instead of the adapter's
// built-in quota. Used for config-file overrides.
func WithRateLimit(b TaskBackend, cfg models.RateLimitConfig) TaskBackend {
	return &limitOverride{TaskBackend: b, cfg: cfg}
}

type limitOverride struct {
	TaskBackend
	cfg models.RateLimitConfig
}

func (l *limitOverride) RateLimit() models.RateLimitConfig { return l.cfg }
