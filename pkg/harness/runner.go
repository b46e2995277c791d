package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/autocode-ai/autocode/pkg/models"
)

// Session describes one agent invocation.
type Session struct {
	Mode      models.SessionMode
	Model     string
	Prompt    string
	Iteration int
	Dir       string
}

// SessionResult is what an agent run produced.
type SessionResult struct {
	Output string
}

// SessionRunner executes one agent session. Implementations get a fresh
// context window per session; continuity lives in the task backend, not in
// the agent process.
type SessionRunner interface {
	RunSession(ctx context.Context, s Session) (SessionResult, error)
}

// ExecRunner runs each session as a subprocess, feeding the prompt on stdin.
// The command is split on whitespace; the model name is appended as a
// --model flag when set.
type ExecRunner struct {
	Command string
}

func (r *ExecRunner) RunSession(ctx context.Context, s Session) (SessionResult, error) {
	parts := strings.Fields(r.Command)
	if len(parts) == 0 {
		return SessionResult{}, fmt.Errorf("empty agent command")
	}
	args := parts[1:]
	if s.Model != "" {
		args = append(args, "--model", s.Model)
	}

	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Dir = s.Dir
	cmd.Stdin = strings.NewReader(s.Prompt)
	cmd.Stderr = os.Stderr

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return SessionResult{Output: out.String()}, fmt.Errorf("agent session: %w", err)
	}
	return SessionResult{Output: out.String()}, nil
}
