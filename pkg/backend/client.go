package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/autocode-ai/autocode/pkg/models"
	"github.com/autocode-ai/autocode/pkg/ratelimit"
	"github.com/autocode-ai/autocode/pkg/tracker"
)

const (
	// maxTransientRetries bounds retries of recoverable network failures.
	maxTransientRetries = 3

	// transientBackoff is the base delay between transient retries, scaled
	// linearly by attempt number.
	transientBackoff = 2 * time.Second

	// maxConsecutiveLimits is the number of back-to-back rate-limit signals
	// after which the client gives up instead of waiting again.
	maxConsecutiveLimits = 5
)

// Client wraps a TaskBackend so that every call flows through the response
// cache, the call tracker, and the rate-limit governor. Reads are served from
// cache when fresh; writes invalidate the entries they stale, strictly after
// the write succeeds.
type Client struct {
	backend  TaskBackend
	cache    ResponseCache
	tracker  tracker.Tracker
	governor *ratelimit.Governor
	policy   Policy
	logf     func(format string, args ...any)
	wait     func(ctx context.Context, d time.Duration) error
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient builds a gated client around backend. cache may be nil to disable
// response caching; tracker may be nil to disable call accounting.
func NewClient(b TaskBackend, cache ResponseCache, tr tracker.Tracker) *Client {
	c := &Client{
		backend:  b,
		cache:    cache,
		tracker:  tr,
		governor: ratelimit.New(b.RateLimit()),
		logf:     log.Printf,
	}
	c.wait = c.governor.Wait
	c.sleep = sleep
	return c
}

// Backend returns the wrapped adapter.
func (c *Client) Backend() TaskBackend { return c.backend }

// Governor returns the client's rate-limit governor, so its window state can
// be persisted across runs.
func (c *Client) Governor() *ratelimit.Governor { return c.governor }

func (c *Client) record(ctx context.Context, op models.Operation, endpoint string, outcome models.Outcome) {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.Record(ctx, op, endpoint, outcome); err != nil {
		c.logf("call log: %v", err)
	}
}

// do executes one backend call under the client's gating policy. Rate-limit
// signals trigger a governed wait and retry, up to maxConsecutiveLimits in a
// row. Transient failures retry with linear backoff. Everything else
// propagates to the caller.
func do[T any](ctx context.Context, c *Client, op models.Operation, endpoint string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	transient := 0
	for {
		v, err := fn(ctx)
		c.record(ctx, op, endpoint, outcomeFor(err))

		switch {
		case err == nil:
			if c.governor.ConsecutiveLimitHits() > 0 {
				c.governor.Reset()
			}
			c.governor.RecordSuccess()
			return v, nil

		case IsRateLimited(err):
			wait := c.governor.OnLimitSignal()
			if hits := c.governor.ConsecutiveLimitHits(); hits >= maxConsecutiveLimits {
				return zero, fmt.Errorf("%s %s: %d consecutive rate limits, giving up: %w", op, endpoint, hits, err)
			}
			var rl *RateLimitedError
			if errors.As(err, &rl) && rl.RetryAfter > wait {
				// Trust a server hint that exceeds our own estimate.
				wait = rl.RetryAfter
			}
			if werr := c.wait(ctx, wait); werr != nil {
				return zero, werr
			}

		case IsTransient(err):
			transient++
			if transient > maxTransientRetries {
				return zero, fmt.Errorf("%s %s: %w", op, endpoint, err)
			}
			delay := time.Duration(transient) * transientBackoff
			c.logf("%s %s: transient failure, retry %d/%d in %s: %v", op, endpoint, transient, maxTransientRetries, delay, err)
			if serr := c.sleep(ctx, delay); serr != nil {
				return zero, serr
			}

		default:
			if IsMalformed(err) {
				c.logf("%s %s: %v", op, endpoint, err)
			}
			return zero, err
		}
	}
}

// cachedRead serves a read through the response cache: a fresh entry short
// circuits the backend entirely; a miss goes through the gated call path and
// populates the cache on success. Undecodable entries are dropped and
// refetched.
func cachedRead[T any](ctx context.Context, c *Client, key string, ttl time.Duration, op models.Operation, endpoint string, fn func(context.Context) (T, error)) (T, error) {
	if c.cache != nil && key != "" {
		if raw, ok := c.cache.Get(key); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
			c.cache.Invalidate(key)
		}
	}

	v, err := do(ctx, c, op, endpoint, fn)
	if err != nil {
		var zero T
		return zero, err
	}

	if c.cache != nil && key != "" {
		if raw, merr := json.Marshal(v); merr == nil {
			if serr := c.cache.Set(key, raw, ttl); serr != nil {
				c.logf("cache set %s: %v", key, serr)
			}
		}
	}
	return v, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ListTeams returns all teams, cached for a day.
func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	return cachedRead(ctx, c, teamsKey, ttlTeams, models.OpList, "team", c.backend.ListTeams)
}

// CreateProject creates a project. On permission denial it degrades to
// looking up an existing project with the same name, so a harness running
// under a read-mostly token can still attach to prepared infrastructure.
func (c *Client) CreateProject(ctx context.Context, name string, teamIDs []string, description string) (*models.Project, error) {
	p, err := do(ctx, c, models.OpCreate, "project", func(ctx context.Context) (*models.Project, error) {
		return c.backend.CreateProject(ctx, name, teamIDs, description)
	})
	if IsPermission(err) {
		c.logf("create project %q denied, falling back to existing: %v", name, err)
		return c.findProjectByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	c.policy.Apply(WriteOp{Operation: models.OpCreate, Endpoint: "project", ID: p.ID}, c.cache)
	return p, nil
}

func (c *Client) findProjectByName(ctx context.Context, name string) (*models.Project, error) {
	projects, err := c.ListProjects(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].Name == name {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// GetProject returns a project by ID, cached.
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return cachedRead(ctx, c, projectKey(id), ttlProject, models.OpGet, "project", func(ctx context.Context) (*models.Project, error) {
		return c.backend.GetProject(ctx, id)
	})
}

// ListProjects returns projects, optionally scoped to a team, cached.
func (c *Client) ListProjects(ctx context.Context, teamID string) ([]models.Project, error) {
	key := allProjectsKey
	if teamID != "" {
		key = teamProjectsKey(teamID)
	}
	return cachedRead(ctx, c, key, ttlProject, models.OpList, "project", func(ctx context.Context) ([]models.Project, error) {
		return c.backend.ListProjects(ctx, teamID)
	})
}

// CreateLabel creates a label, degrading to a lookup of an existing label
// with the same name on permission denial.
func (c *Client) CreateLabel(ctx context.Context, name, color, description string) (*models.Label, error) {
	l, err := do(ctx, c, models.OpCreate, "label", func(ctx context.Context) (*models.Label, error) {
		return c.backend.CreateLabel(ctx, name, color, description)
	})
	if IsPermission(err) {
		c.logf("create label %q denied, falling back to existing: %v", name, err)
		return c.findLabelByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	c.policy.Apply(WriteOp{Operation: models.OpCreate, Endpoint: "label", ID: l.ID}, c.cache)
	return l, nil
}

func (c *Client) findLabelByName(ctx context.Context, name string) (*models.Label, error) {
	labels, err := c.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range labels {
		if labels[i].Name == name {
			return &labels[i], nil
		}
	}
	return nil, fmt.Errorf("label %q: %w", name, ErrNotFound)
}

// EnsureLabel returns the label with the given name, creating it if absent.
func (c *Client) EnsureLabel(ctx context.Context, name, color, description string) (*models.Label, error) {
	if l, err := c.findLabelByName(ctx, name); err == nil {
		return l, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return c.CreateLabel(ctx, name, color, description)
}

// ListLabels returns all labels, cached.
func (c *Client) ListLabels(ctx context.Context) ([]models.Label, error) {
	return cachedRead(ctx, c, labelsKey, ttlLabels, models.OpList, "label", c.backend.ListLabels)
}

// CreateIssue creates an issue. On permission denial it degrades to looking
// up an existing issue with the same title in the same project.
func (c *Client) CreateIssue(ctx context.Context, in models.IssueCreate) (*models.Issue, error) {
	iss, err := do(ctx, c, models.OpCreate, "issue", func(ctx context.Context) (*models.Issue, error) {
		return c.backend.CreateIssue(ctx, in)
	})
	if IsPermission(err) {
		c.logf("create issue %q denied, falling back to existing: %v", in.Title, err)
		return c.findIssueByTitle(ctx, in.ProjectID, in.Title)
	}
	if err != nil {
		return nil, err
	}
	c.policy.Apply(WriteOp{Operation: models.OpCreate, Endpoint: "issue", ID: iss.ID, ProjectID: iss.ProjectID}, c.cache)
	return iss, nil
}

func (c *Client) findIssueByTitle(ctx context.Context, projectID, title string) (*models.Issue, error) {
	issues, err := c.ListIssues(ctx, models.IssueFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	for i := range issues {
		if issues[i].Title == title {
			return &issues[i], nil
		}
	}
	return nil, fmt.Errorf("issue %q: %w", title, ErrNotFound)
}

// GetIssue returns an issue by ID, cached.
func (c *Client) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	return cachedRead(ctx, c, issueKey(id), ttlIssueGet, models.OpGet, "issue", func(ctx context.Context) (*models.Issue, error) {
		return c.backend.GetIssue(ctx, id)
	})
}

// UpdateIssue applies in to the issue and invalidates its cached views.
func (c *Client) UpdateIssue(ctx context.Context, id string, in models.IssueUpdate) (*models.Issue, error) {
	iss, err := do(ctx, c, models.OpUpdate, "issue", func(ctx context.Context) (*models.Issue, error) {
		return c.backend.UpdateIssue(ctx, id, in)
	})
	if err != nil {
		return nil, err
	}
	c.policy.Apply(WriteOp{Operation: models.OpUpdate, Endpoint: "issue", ID: id, ProjectID: iss.ProjectID}, c.cache)
	return iss, nil
}

// ListIssues returns issues matching the filter. Only the plain per-project
// listing is cached; filtered listings (status, labels, limit) always hit the
// backend so reconciliation sees ground truth.
func (c *Client) ListIssues(ctx context.Context, filter models.IssueFilter) ([]models.Issue, error) {
	key := ""
	if filter.ProjectID != "" && filter.Status == "" && len(filter.LabelNames) == 0 && filter.Limit == 0 {
		key = projectIssuesKey(filter.ProjectID)
	}
	return cachedRead(ctx, c, key, ttlIssueList, models.OpList, "issue", func(ctx context.Context) ([]models.Issue, error) {
		return c.backend.ListIssues(ctx, filter)
	})
}

// CreateComment adds a comment to an issue and invalidates its cached views.
func (c *Client) CreateComment(ctx context.Context, issueID, body string) (*models.Comment, error) {
	cm, err := do(ctx, c, models.OpCreate, "comment", func(ctx context.Context) (*models.Comment, error) {
		return c.backend.CreateComment(ctx, issueID, body)
	})
	if err != nil {
		return nil, err
	}
	c.policy.Apply(WriteOp{Operation: models.OpCreate, Endpoint: "comment", ID: cm.ID, IssueID: issueID}, c.cache)
	return cm, nil
}

// ListComments returns an issue's comments, cached briefly.
func (c *Client) ListComments(ctx context.Context, issueID string) ([]models.Comment, error) {
	return cachedRead(ctx, c, issueCommentsKey(issueID), ttlComments, models.OpList, "comment", func(ctx context.Context) ([]models.Comment, error) {
		return c.backend.ListComments(ctx, issueID)
	})
}

// TestConnection verifies the backend is reachable, through the gated path so
// rate limits during startup are handled like any other call.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := do(ctx, c, models.OpGet, "connection", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.backend.TestConnection(ctx)
	})
	return err
}
