// Package harness runs the autonomous session loop: decide which kind of
// agent session comes next, run it with a fresh context, persist what it
// changed, repeat.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/autocode-ai/autocode/pkg/backend"
	"github.com/autocode-ai/autocode/pkg/config"
	"github.com/autocode-ai/autocode/pkg/models"
	"github.com/autocode-ai/autocode/pkg/scheduler"
)

// Harness owns the session loop. Sessions run strictly one at a time; all
// continuity between them lives in the task backend and the state file.
type Harness struct {
	cfg    *config.Config
	client *backend.Client
	sched  *scheduler.Scheduler
	runner SessionRunner
	out    io.Writer
	logf   func(format string, args ...any)
}

// New assembles a harness from its parts.
func New(cfg *config.Config, client *backend.Client, sched *scheduler.Scheduler, runner SessionRunner) *Harness {
	return &Harness{
		cfg:    cfg,
		client: client,
		sched:  sched,
		runner: runner,
		out:    os.Stdout,
		logf:   log.Printf,
	}
}

// Run executes the session loop until the context is canceled or the
// configured iteration cap is reached. A failed session aborts only its own
// iteration; the loop continues with a fresh one.
func (h *Harness) Run(ctx context.Context) error {
	h.restoreRateWindow()

	iteration := 0
	for {
		iteration++
		if max := h.cfg.Session.MaxIterations; max > 0 && iteration > max {
			fmt.Fprintf(h.out, "\nReached max iterations (%d). Run again to continue.\n", max)
			return nil
		}

		if err := h.sched.Reconcile(ctx, h.client); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.logf("reconcile failed, using cached counters: %v", err)
		}

		mode, st, err := h.sched.Decide()
		if err != nil {
			return fmt.Errorf("decide next session: %w", err)
		}

		printSessionHeader(h.out, iteration, mode)
		printProgress(h.out, st, h.sched.Threshold())

		session := Session{
			Mode:      mode,
			Model:     h.modelFor(mode),
			Prompt:    promptFor(mode, h.cfg.SpecFile, h.cfg.ProjectName),
			Iteration: iteration,
			Dir:       ".",
		}

		_, runErr := h.runner.RunSession(ctx, session)
		h.persistRateWindow()

		if runErr != nil {
			if errors.Is(runErr, context.Canceled) || ctx.Err() != nil {
				fmt.Fprintln(h.out, "\nInterrupted. Run again to resume.")
				return ctx.Err()
			}
			h.logf("session %d failed: %v", iteration, runErr)
			fmt.Fprintln(h.out, "\nSession failed, retrying with a fresh session...")
		}

		if st, err := h.sched.Store().Load(); err == nil {
			printProgress(h.out, st, h.sched.Threshold())
		}

		fmt.Fprintf(h.out, "\nNext session in %s...\n", h.cfg.Session.ContinueDelay)
		if err := sleepCtx(ctx, h.cfg.Session.ContinueDelay); err != nil {
			return err
		}
	}
}

func (h *Harness) modelFor(mode models.SessionMode) string {
	switch mode {
	case models.ModeInitialize:
		return h.cfg.Models.Initializer
	case models.ModeAudit:
		return h.cfg.Models.Audit
	default:
		return h.cfg.Models.Coding
	}
}

// restoreRateWindow reinstates the governor's persisted window anchor so a
// restarted process computes the remaining wait from the original first call.
func (h *Harness) restoreRateWindow() {
	st, err := h.sched.Store().Load()
	if err != nil {
		h.logf("load rate window state: %v", err)
		return
	}
	if ws, ok := st.RateWindows[h.client.Backend().Name()]; ok {
		h.client.Governor().Restore(ws)
	}
}

func (h *Harness) persistRateWindow() {
	name := h.client.Backend().Name()
	ws := h.client.Governor().State()
	err := h.sched.Store().Update(func(st *models.ProjectState) error {
		if st.RateWindows == nil {
			st.RateWindows = make(map[string]models.RateWindowState)
		}
		st.RateWindows[name] = ws
		return nil
	})
	if err != nil {
		h.logf("persist rate window state: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
