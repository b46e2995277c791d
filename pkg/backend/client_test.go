package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/autocode-ai/autocode/pkg/models"
)

// fakeBackend is a scriptable adapter: errs are popped one per call, a nil
// entry (or an exhausted queue) means the call succeeds.
type fakeBackend struct {
	limit models.RateLimitConfig
	calls int
	errs  []error

	teams    []models.Team
	projects []models.Project
	labels   []models.Label
	issues   map[string]models.Issue
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		teams:  []models.Team{{ID: "T-1", Name: "Default"}},
		issues: make(map[string]models.Issue),
	}
}

func (f *fakeBackend) next() error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeBackend) Name() string                         { return "fake" }
func (f *fakeBackend) RateLimit() models.RateLimitConfig    { return f.limit }
func (f *fakeBackend) TestConnection(context.Context) error { return f.next() }

func (f *fakeBackend) ListTeams(context.Context) ([]models.Team, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.teams, nil
}

func (f *fakeBackend) CreateProject(_ context.Context, name string, teamIDs []string, description string) (*models.Project, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	p := models.Project{ID: fmt.Sprintf("P-%d", len(f.projects)+1), Name: name, TeamIDs: teamIDs, Description: description}
	f.projects = append(f.projects, p)
	return &p, nil
}

func (f *fakeBackend) GetProject(_ context.Context, id string) (*models.Project, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	for i := range f.projects {
		if f.projects[i].ID == id {
			return &f.projects[i], nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeBackend) ListProjects(_ context.Context, teamID string) ([]models.Project, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.projects, nil
}

func (f *fakeBackend) CreateLabel(_ context.Context, name, color, description string) (*models.Label, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	l := models.Label{ID: fmt.Sprintf("L-%d", len(f.labels)+1), Name: name, Color: color}
	f.labels = append(f.labels, l)
	return &l, nil
}

func (f *fakeBackend) ListLabels(context.Context) ([]models.Label, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.labels, nil
}

func (f *fakeBackend) CreateIssue(_ context.Context, in models.IssueCreate) (*models.Issue, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	iss := models.Issue{
		ID:        fmt.Sprintf("ISS-%d", len(f.issues)+1),
		Title:     in.Title,
		Status:    models.StatusTodo,
		ProjectID: in.ProjectID,
	}
	f.issues[iss.ID] = iss
	return &iss, nil
}

func (f *fakeBackend) GetIssue(_ context.Context, id string) (*models.Issue, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	iss, ok := f.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &iss, nil
}

func (f *fakeBackend) UpdateIssue(_ context.Context, id string, in models.IssueUpdate) (*models.Issue, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	iss, ok := f.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	if in.Status != nil {
		iss.Status = *in.Status
	}
	f.issues[id] = iss
	return &iss, nil
}

func (f *fakeBackend) ListIssues(_ context.Context, filter models.IssueFilter) ([]models.Issue, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	var out []models.Issue
	for _, iss := range f.issues {
		if filter.ProjectID != "" && iss.ProjectID != filter.ProjectID {
			continue
		}
		out = append(out, iss)
	}
	return out, nil
}

func (f *fakeBackend) CreateComment(_ context.Context, issueID, body string) (*models.Comment, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return &models.Comment{ID: "C-1", IssueID: issueID, Body: body}, nil
}

func (f *fakeBackend) ListComments(_ context.Context, issueID string) ([]models.Comment, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return nil, nil
}

// mapCache is an in-memory ResponseCache for tests.
type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string][]byte)} }

func (m *mapCache) Get(key string) ([]byte, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		delete(m.entries, key)
		return nil
	}
	m.entries[key] = value
	return nil
}

func (m *mapCache) Invalidate(key string) error {
	delete(m.entries, key)
	return nil
}

func (m *mapCache) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return 0, err
	}
	n := 0
	for k := range m.entries {
		if re.MatchString(k) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func newTestClient(t *testing.T, b TaskBackend, cache ResponseCache) *Client {
	t.Helper()
	c := NewClient(b, cache, nil)
	c.logf = func(string, ...any) {}
	return c
}

func TestReadThroughCache(t *testing.T) {
	fb := newFakeBackend()
	c := newTestClient(t, fb, newMapCache())
	ctx := context.Background()

	teams, err := c.ListTeams(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 1 {
		t.Fatalf("expected 1 team, got %d", len(teams))
	}
	if fb.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", fb.calls)
	}

	// Second read is served from cache without touching the backend.
	if _, err := c.ListTeams(ctx); err != nil {
		t.Fatal(err)
	}
	if fb.calls != 1 {
		t.Fatalf("expected cached read, backend saw %d calls", fb.calls)
	}
}

func TestNilCacheAlwaysCallsBackend(t *testing.T) {
	fb := newFakeBackend()
	c := newTestClient(t, fb, nil)
	ctx := context.Background()

	_, _ = c.ListTeams(ctx)
	_, _ = c.ListTeams(ctx)
	if fb.calls != 2 {
		t.Fatalf("expected 2 backend calls with caching off, got %d", fb.calls)
	}
}

func TestWriteInvalidatesAfterSuccessOnly(t *testing.T) {
	fb := newFakeBackend()
	cache := newMapCache()
	c := newTestClient(t, fb, cache)
	ctx := context.Background()

	iss, err := c.CreateIssue(ctx, models.IssueCreate{Title: "a", ProjectID: "P-1"})
	if err != nil {
		t.Fatal(err)
	}

	// Populate the issue entry, then fail an update: the entry must survive.
	if _, err := c.GetIssue(ctx, iss.ID); err != nil {
		t.Fatal(err)
	}
	key := issueKey(iss.ID)
	if _, ok := cache.Get(key); !ok {
		t.Fatal("expected cached issue")
	}

	fb.errs = []error{errors.New("backend exploded")}
	done := models.StatusDone
	if _, err := c.UpdateIssue(ctx, iss.ID, models.IssueUpdate{Status: &done}); err == nil {
		t.Fatal("expected update to fail")
	}
	if _, ok := cache.Get(key); !ok {
		t.Fatal("failed write must not invalidate the cache")
	}

	// A successful update removes the stale entry.
	if _, err := c.UpdateIssue(ctx, iss.ID, models.IssueUpdate{Status: &done}); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Get(key); ok {
		t.Fatal("successful write left a stale cache entry")
	}
}

func TestFilteredListBypassesCache(t *testing.T) {
	fb := newFakeBackend()
	c := newTestClient(t, fb, newMapCache())
	ctx := context.Background()

	filter := models.IssueFilter{ProjectID: "P-1", Status: models.StatusDone}
	_, _ = c.ListIssues(ctx, filter)
	_, _ = c.ListIssues(ctx, filter)
	if fb.calls != 2 {
		t.Fatalf("filtered listings must hit the backend every time, got %d calls", fb.calls)
	}

	plain := models.IssueFilter{ProjectID: "P-1"}
	_, _ = c.ListIssues(ctx, plain)
	_, _ = c.ListIssues(ctx, plain)
	if fb.calls != 3 {
		t.Fatalf("plain project listing should cache, got %d calls", fb.calls)
	}
}

func TestPermissionFallbackToExisting(t *testing.T) {
	fb := newFakeBackend()
	fb.projects = []models.Project{{ID: "P-9", Name: "demo"}}
	c := newTestClient(t, fb, nil)
	ctx := context.Background()

	fb.errs = []error{&PermissionError{Op: "create project", Err: errors.New("forbidden")}}
	p, err := c.CreateProject(ctx, "demo", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "P-9" {
		t.Fatalf("expected existing project, got %s", p.ID)
	}
}

func TestPermissionFallbackMissing(t *testing.T) {
	fb := newFakeBackend()
	c := newTestClient(t, fb, nil)

	fb.errs = []error{&PermissionError{Op: "create project", Err: errors.New("forbidden")}}
	_, err := c.CreateProject(context.Background(), "nope", nil, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransientRetry(t *testing.T) {
	fb := newFakeBackend()
	c := newTestClient(t, fb, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	fb.errs = []error{
		&TransientError{Err: errors.New("conn reset")},
		&TransientError{Err: errors.New("conn reset")},
	}
	if _, err := c.ListTeams(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fb.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fb.calls)
	}
}

func TestTransientRetryExhausted(t *testing.T) {
	fb := newFakeBackend()
	c := newTestClient(t, fb, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	for i := 0; i < maxTransientRetries+1; i++ {
		fb.errs = append(fb.errs, &TransientError{Err: errors.New("conn reset")})
	}
	_, err := c.ListTeams(context.Background())
	if !IsTransient(err) {
		t.Fatalf("expected transient error after exhausted retries, got %v", err)
	}
	if fb.calls != maxTransientRetries+1 {
		t.Fatalf("expected %d attempts, got %d", maxTransientRetries+1, fb.calls)
	}
}

func TestNotFoundPropagates(t *testing.T) {
	fb := newFakeBackend()
	c := newTestClient(t, fb, newMapCache())

	_, err := c.GetIssue(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if fb.calls != 1 {
		t.Fatalf("expected no retries for not-found, got %d calls", fb.calls)
	}
}

func TestMalformedNeverCached(t *testing.T) {
	fb := newFakeBackend()
	cache := newMapCache()
	c := newTestClient(t, fb, cache)

	fb.errs = []error{&MalformedResponseError{Err: errors.New("bad json")}}
	_, err := c.ListTeams(context.Background())
	if !IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if len(cache.entries) != 0 {
		t.Fatal("malformed response populated the cache")
	}
}

func TestRateLimitGovernedWait(t *testing.T) {
	fb := newFakeBackend()
	fb.limit = models.RateLimitConfig{MaxRequests: 5, Window: 60 * time.Second, MaxWait: time.Hour}
	c := newTestClient(t, fb, nil)
	ctx := context.Background()

	// Five successful calls anchor the window at the first one.
	for i := 0; i < 5; i++ {
		if _, err := c.ListTeams(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// Simulate the anchor sitting 5s in the past, then a limit signal: the
	// wait must cover the remaining ~55s plus the safety buffer, not a full
	// fresh window.
	st := c.Governor().State()
	st.FirstCall = time.Now().Add(-5 * time.Second)
	c.Governor().Restore(st)

	var waited time.Duration
	c.wait = func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	fb.errs = []error{&RateLimitedError{}}
	if _, err := c.ListTeams(ctx); err != nil {
		t.Fatal(err)
	}

	if waited < 58*time.Second || waited > 62*time.Second {
		t.Fatalf("expected ~60s wait (55s remaining + buffer), got %s", waited)
	}
	if c.Governor().ConsecutiveLimitHits() != 0 {
		t.Errorf("hit counter not reset after successful retry")
	}
}

func TestRateLimitServerHintWins(t *testing.T) {
	fb := newFakeBackend()
	fb.limit = models.RateLimitConfig{MaxRequests: 5, Window: 10 * time.Second, MaxWait: time.Hour}
	c := newTestClient(t, fb, nil)

	var waited time.Duration
	c.wait = func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	fb.errs = []error{&RateLimitedError{RetryAfter: 5 * time.Minute}}
	if _, err := c.ListTeams(context.Background()); err != nil {
		t.Fatal(err)
	}
	if waited != 5*time.Minute {
		t.Fatalf("expected server-suggested 5m wait, got %s", waited)
	}
}

func TestConsecutiveLimitsGiveUp(t *testing.T) {
	fb := newFakeBackend()
	fb.limit = models.RateLimitConfig{MaxRequests: 5, Window: 10 * time.Second, MaxWait: time.Minute}
	c := newTestClient(t, fb, nil)
	c.wait = func(context.Context, time.Duration) error { return nil }

	for i := 0; i < maxConsecutiveLimits+1; i++ {
		fb.errs = append(fb.errs, &RateLimitedError{})
	}
	_, err := c.ListTeams(context.Background())
	if err == nil {
		t.Fatal("expected failure after repeated rate limits")
	}
	if fb.calls != maxConsecutiveLimits {
		t.Fatalf("expected %d attempts before giving up, got %d", maxConsecutiveLimits, fb.calls)
	}
}
