// Package memory provides an in-process TaskBackend used for local runs and
// tests. State lives only for the lifetime of the process.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autocode-ai/autocode/pkg/backend"
	"github.com/autocode-ai/autocode/pkg/models"
)

func init() {
	backend.Register("memory", func(options map[string]string) (backend.TaskBackend, error) {
		return New(), nil
	})
}

// Backend is an in-memory task tracker. Safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	teams    map[string]models.Team
	projects map[string]models.Project
	labels   map[string]models.Label
	issues   map[string]models.Issue
	comments map[string][]models.Comment
	seq      map[string]int
	now      func() time.Time
}

// New creates an empty in-memory backend with one default team.
func New() *Backend {
	b := &Backend{
		teams:    make(map[string]models.Team),
		projects: make(map[string]models.Project),
		labels:   make(map[string]models.Label),
		issues:   make(map[string]models.Issue),
		comments: make(map[string][]models.Comment),
		seq:      make(map[string]int),
		now:      time.Now,
	}
	b.teams["TEAM-1"] = models.Team{ID: "TEAM-1", Name: "Default"}
	return b
}

func (b *Backend) nextID(prefix string) string {
	b.seq[prefix]++
	return fmt.Sprintf("%s-%d", prefix, b.seq[prefix])
}

func (b *Backend) Name() string { return "memory" }

// RateLimit marks the backend exempt; there is no quota to govern.
func (b *Backend) RateLimit() models.RateLimitConfig {
	return models.RateLimitConfig{}
}

func (b *Backend) TestConnection(ctx context.Context) error { return nil }

func (b *Backend) ListTeams(ctx context.Context) ([]models.Team, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	teams := make([]models.Team, 0, len(b.teams))
	for _, t := range b.teams {
		teams = append(teams, t)
	}
	return teams, nil
}

func (b *Backend) CreateProject(ctx context.Context, name string, teamIDs []string, description string) (*models.Project, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := models.Project{
		ID:          b.nextID("P"),
		Name:        name,
		Description: description,
		TeamIDs:     append([]string(nil), teamIDs...),
		CreatedAt:   b.now(),
	}
	b.projects[p.ID] = p
	return &p, nil
}

func (b *Backend) GetProject(ctx context.Context, id string) (*models.Project, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, backend.ErrNotFound)
	}
	return &p, nil
}

func (b *Backend) ListProjects(ctx context.Context, teamID string) ([]models.Project, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Project
	for _, p := range b.projects {
		if teamID != "" && !contains(p.TeamIDs, teamID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *Backend) CreateLabel(ctx context.Context, name, color, description string) (*models.Label, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.labels {
		if l.Name == name {
			return nil, fmt.Errorf("label %q already exists", name)
		}
	}
	l := models.Label{ID: b.nextID("L"), Name: name, Color: color, Description: description}
	b.labels[l.ID] = l
	return &l, nil
}

func (b *Backend) ListLabels(ctx context.Context) ([]models.Label, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	labels := make([]models.Label, 0, len(b.labels))
	for _, l := range b.labels {
		labels = append(labels, l)
	}
	return labels, nil
}

func (b *Backend) CreateIssue(ctx context.Context, in models.IssueCreate) (*models.Issue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}
	iss := models.Issue{
		ID:          b.nextID("ISS"),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    in.Priority,
		ProjectID:   in.ProjectID,
		Labels:      b.resolveLabels(in.LabelIDs),
		CreatedAt:   b.now(),
		UpdatedAt:   b.now(),
	}
	b.issues[iss.ID] = iss
	return &iss, nil
}

func (b *Backend) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	iss, ok := b.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, backend.ErrNotFound)
	}
	return &iss, nil
}

func (b *Backend) UpdateIssue(ctx context.Context, id string, in models.IssueUpdate) (*models.Issue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	iss, ok := b.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, backend.ErrNotFound)
	}
	if in.Title != nil {
		iss.Title = *in.Title
	}
	if in.Description != nil {
		iss.Description = *in.Description
	}
	if in.Status != nil {
		iss.Status = *in.Status
	}
	if in.Priority != nil {
		iss.Priority = *in.Priority
	}
	if in.LabelIDs != nil {
		iss.Labels = b.resolveLabels(in.LabelIDs)
	}
	for _, lid := range in.AddLabelIDs {
		if l, ok := b.labels[lid]; ok && !iss.HasLabel(l.Name) {
			iss.Labels = append(iss.Labels, l)
		}
	}
	for _, lid := range in.RemoveLabelIDs {
		if l, ok := b.labels[lid]; ok {
			iss.Labels = removeLabel(iss.Labels, l.Name)
		}
	}
	iss.UpdatedAt = b.now()
	b.issues[id] = iss
	return &iss, nil
}

func (b *Backend) ListIssues(ctx context.Context, filter models.IssueFilter) ([]models.Issue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Issue
	for _, iss := range b.issues {
		if filter.ProjectID != "" && iss.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && iss.Status != filter.Status {
			continue
		}
		if !hasAllLabels(&iss, filter.LabelNames) {
			continue
		}
		out = append(out, iss)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (b *Backend) CreateComment(ctx context.Context, issueID, body string) (*models.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.issues[issueID]; !ok {
		return nil, fmt.Errorf("issue %s: %w", issueID, backend.ErrNotFound)
	}
	cm := models.Comment{
		ID:        b.nextID("C"),
		IssueID:   issueID,
		Body:      body,
		CreatedAt: b.now(),
	}
	b.comments[issueID] = append(b.comments[issueID], cm)
	return &cm, nil
}

func (b *Backend) ListComments(ctx context.Context, issueID string) ([]models.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Comment(nil), b.comments[issueID]...), nil
}

func (b *Backend) resolveLabels(ids []string) []models.Label {
	var out []models.Label
	for _, id := range ids {
		if l, ok := b.labels[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func hasAllLabels(iss *models.Issue, names []string) bool {
	for _, n := range names {
		if !iss.HasLabel(n) {
			return false
		}
	}
	return true
}

func removeLabel(labels []models.Label, name string) []models.Label {
	out := labels[:0]
	for _, l := range labels {
		if l.Name != name {
			out = append(out, l)
		}
	}
	return out
}
