// Package ratelimit decides how long to wait after a backend limit signal.
//
// The governor anchors a rolling quota window to the first recorded call and
// computes the remaining wait from that anchor, rather than restarting a full
// window on every limit signal. A limit signal does not mean the window
// restarted; only the passage of the configured window does.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/autocode-ai/autocode/pkg/models"
)

const (
	// minWait is the floor on a computed wait, covering clock jitter when
	// the window has nearly elapsed.
	minWait = 5 * time.Second

	// safetyBuffer is added on top of the computed remaining window.
	safetyBuffer = 5 * time.Second

	// countdownStep is the granularity of the interruptible wait loop.
	countdownStep = 30 * time.Second
)

// Governor tracks the rolling rate-limit window for one backend and computes
// waits after limit signals. It is not safe for concurrent use; the harness
// runs sessions one at a time.
type Governor struct {
	cfg   models.RateLimitConfig
	state models.RateWindowState
	now   func() time.Time
	logf  func(format string, args ...any)
}

// New creates a Governor for the given backend rate-limit configuration.
// A config with MaxRequests of zero is exempt: OnLimitSignal always returns
// zero and RecordSuccess is a no-op.
func New(cfg models.RateLimitConfig) *Governor {
	return &Governor{
		cfg:  cfg,
		now:  time.Now,
		logf: log.Printf,
	}
}

// RecordSuccess anchors the rolling window on the first recorded call. The
// anchor is never cleared merely because a call succeeded; it rolls forward
// only once a full window has elapsed with no further limit signals.
func (g *Governor) RecordSuccess() {
	if g.cfg.Exempt() {
		return
	}
	now := g.now()
	if g.state.FirstCall.IsZero() {
		g.state.FirstCall = now
		return
	}
	if now.Sub(g.state.FirstCall) >= g.cfg.Window &&
		(g.state.LastLimit.IsZero() || now.Sub(g.state.LastLimit) >= g.cfg.Window) {
		g.state.FirstCall = now
		g.state.LastLimit = time.Time{}
	}
}

// OnLimitSignal records a limit signal and returns how long to wait before
// retrying: the remainder of the window measured from the anchor, plus a
// safety buffer, capped at the configured maximum wait. With no anchor the
// elapsed time is assumed to be zero, the conservative worst case.
func (g *Governor) OnLimitSignal() time.Duration {
	if g.cfg.Exempt() {
		return 0
	}
	now := g.now()
	g.state.ConsecutiveLimitHits++
	g.state.LastLimit = now

	var elapsed time.Duration
	if !g.state.FirstCall.IsZero() {
		elapsed = now.Sub(g.state.FirstCall)
	}

	remaining := g.cfg.Window - elapsed
	if remaining < minWait {
		remaining = minWait
	}
	wait := remaining + safetyBuffer
	if g.cfg.MaxWait > 0 && wait > g.cfg.MaxWait {
		wait = g.cfg.MaxWait
	}
	return wait
}

// Reset clears the consecutive-hit counter after the first success following
// a completed wait. It deliberately does not clear the window anchor.
func (g *Governor) Reset() {
	g.state.ConsecutiveLimitHits = 0
}

// ConsecutiveLimitHits returns the number of limit signals seen since the
// last reset.
func (g *Governor) ConsecutiveLimitHits() int {
	return g.state.ConsecutiveLimitHits
}

// Wait suspends for d in interruptible increments, printing remaining time.
// On cancellation the anchor state survives, so a retry recomputes the
// correct remaining wait instead of waiting a full window again.
func (g *Governor) Wait(ctx context.Context, d time.Duration) error {
	remaining := d
	for remaining > 0 {
		g.logf("rate limit: waiting, %s remaining", remaining.Round(time.Second))
		step := countdownStep
		if remaining < step {
			step = remaining
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		remaining -= step
	}
	g.logf("rate limit: wait complete, resuming")
	return nil
}

// State returns a snapshot of the window state for persistence, so a freshly
// started process can recompute elapsed time from the same anchor.
func (g *Governor) State() models.RateWindowState {
	return g.state
}

// Restore reinstates a previously persisted window state.
func (g *Governor) Restore(s models.RateWindowState) {
	g.state = s
}
