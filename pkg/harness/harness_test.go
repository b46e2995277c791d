package harness

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/autocode-ai/autocode/pkg/backend"
	"github.com/autocode-ai/autocode/pkg/backend/memory"
	"github.com/autocode-ai/autocode/pkg/config"
	"github.com/autocode-ai/autocode/pkg/models"
	"github.com/autocode-ai/autocode/pkg/scheduler"
)

// recordingRunner captures sessions and lets the test mutate state the way a
// real agent session would.
type recordingRunner struct {
	sessions []Session
	onRun    func(Session) error
}

func (r *recordingRunner) RunSession(ctx context.Context, s Session) (SessionResult, error) {
	r.sessions = append(r.sessions, s)
	if r.onRun != nil {
		if err := r.onRun(s); err != nil {
			return SessionResult{}, err
		}
	}
	return SessionResult{}, nil
}

func newTestHarness(t *testing.T, threshold, maxIterations int) (*Harness, *recordingRunner, *scheduler.Scheduler, *backend.Client) {
	t.Helper()
	cfg := config.Default()
	cfg.Session.MaxIterations = maxIterations
	cfg.Session.ContinueDelay = 0
	cfg.Models.Initializer = "opus"
	cfg.Models.Coding = "sonnet"
	cfg.Models.Audit = "opus"

	store := scheduler.NewStore(filepath.Join(t.TempDir(), "state.json"))
	sched := scheduler.New(store, threshold)
	client := backend.NewClient(memory.New(), nil, nil)

	runner := &recordingRunner{}
	h := New(cfg, client, sched, runner)
	h.out = &bytes.Buffer{}
	h.logf = func(string, ...any) {}
	return h, runner, sched, client
}

func TestFirstSessionInitializes(t *testing.T) {
	h, runner, sched, _ := newTestHarness(t, 10, 3)

	runner.onRun = func(s Session) error {
		if s.Mode == models.ModeInitialize {
			return sched.MarkInitialized("memory", "P-1", "ISS-1", 5)
		}
		return nil
	}

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(runner.sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(runner.sessions))
	}
	if runner.sessions[0].Mode != models.ModeInitialize {
		t.Errorf("first session should initialize, got %s", runner.sessions[0].Mode)
	}
	if runner.sessions[1].Mode != models.ModeCode || runner.sessions[2].Mode != models.ModeCode {
		t.Errorf("later sessions should code: %s, %s", runner.sessions[1].Mode, runner.sessions[2].Mode)
	}
	if runner.sessions[0].Model != "opus" || runner.sessions[1].Model != "sonnet" {
		t.Errorf("per-mode models not applied: %s, %s", runner.sessions[0].Model, runner.sessions[1].Model)
	}
}

func TestAuditPreemptsCoding(t *testing.T) {
	h, runner, sched, client := newTestHarness(t, 2, 1)
	ctx := context.Background()

	p, err := client.CreateProject(ctx, "demo", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := sched.MarkInitialized("memory", p.ID, "", 5); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		iss, err := client.CreateIssue(ctx, models.IssueCreate{Title: "f", ProjectID: p.ID})
		if err != nil {
			t.Fatal(err)
		}
		if err := sched.CloseIssueForAudit(ctx, client, iss.ID, ""); err != nil {
			t.Fatal(err)
		}
	}

	if err := h.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(runner.sessions) != 1 || runner.sessions[0].Mode != models.ModeAudit {
		t.Fatalf("expected one audit session, got %+v", runner.sessions)
	}
}

func TestFailedSessionDoesNotStopLoop(t *testing.T) {
	h, runner, sched, _ := newTestHarness(t, 10, 2)

	first := true
	runner.onRun = func(s Session) error {
		if first {
			first = false
			return context.DeadlineExceeded
		}
		return sched.MarkInitialized("memory", "P-1", "", 1)
	}

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(runner.sessions) != 2 {
		t.Fatalf("expected the loop to continue past a failed session, got %d sessions", len(runner.sessions))
	}
}

func TestCancelStopsLoop(t *testing.T) {
	h, runner, _, _ := newTestHarness(t, 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	runner.onRun = func(Session) error {
		cancel()
		return ctx.Err()
	}

	if err := h.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if len(runner.sessions) != 1 {
		t.Fatalf("expected 1 session before cancel, got %d", len(runner.sessions))
	}
}

func TestRateWindowPersistedAcrossRuns(t *testing.T) {
	h, _, sched, client := newTestHarness(t, 10, 1)

	// Give the governor an anchored window, run once, and check the anchor
	// landed in the state file under the backend's name.
	st := client.Governor().State()
	st.ConsecutiveLimitHits = 2
	client.Governor().Restore(st)

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	persisted, err := sched.Store().Load()
	if err != nil {
		t.Fatal(err)
	}
	ws, ok := persisted.RateWindows["memory"]
	if !ok {
		t.Fatal("rate window state not persisted")
	}
	if ws.ConsecutiveLimitHits != 2 {
		t.Errorf("window state mangled: %+v", ws)
	}

	// A fresh harness over the same store restores it into its own governor.
	client2 := backend.NewClient(memory.New(), nil, nil)
	h2 := New(h.cfg, client2, sched, &recordingRunner{})
	h2.logf = func(string, ...any) {}
	h2.restoreRateWindow()
	if got := client2.Governor().State().ConsecutiveLimitHits; got != 2 {
		t.Errorf("expected restored hit count 2, got %d", got)
	}
}

func TestPromptsMentionWorkflowCommands(t *testing.T) {
	for _, tc := range []struct {
		mode models.SessionMode
		want string
	}{
		{models.ModeInitialize, "init-done"},
		{models.ModeCode, "close-issue"},
		{models.ModeAudit, "audit-done"},
	} {
		p := promptFor(tc.mode, "spec.md", "demo")
		if !bytes.Contains([]byte(p), []byte(tc.want)) {
			t.Errorf("%s prompt missing %q", tc.mode, tc.want)
		}
		if !bytes.Contains([]byte(p), []byte("spec.md")) {
			t.Errorf("%s prompt missing spec file name", tc.mode)
		}
	}
}
