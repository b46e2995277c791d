package harness

import (
	"fmt"

	"github.com/autocode-ai/autocode/pkg/models"
)

// promptFor builds the prompt for a session mode. Each mode gets fresh,
// self-contained instructions; the agent carries no memory between sessions,
// so everything it needs to orient itself is spelled out here.
func promptFor(mode models.SessionMode, specFile, projectName string) string {
	switch mode {
	case models.ModeInitialize:
		return initializerPrompt(specFile, projectName)
	case models.ModeAudit:
		return auditPrompt(specFile)
	default:
		return codingPrompt(specFile)
	}
}

func initializerPrompt(specFile, projectName string) string {
	return fmt.Sprintf(`You are the initializer for a long-running autonomous coding project.

Read the specification in %s. Then:

1. Create the task management project named %q if it does not exist.
2. Break the specification into concrete, independently implementable issues.
   Every feature the spec names must be covered by exactly one issue.
3. Create one META issue that tracks overall progress and links the others.
4. Record setup results by running: autocode init-done --project-id <id> --meta-issue <id> --total <n>

Do not start implementing features in this session. Setup only.
`, specFile, projectName)
}

func codingPrompt(specFile string) string {
	return fmt.Sprintf(`You are an autonomous coding agent working through a task backlog.

The specification is in %s. For this session:

1. Pick the highest-priority issue in Todo, move it to In Progress.
2. Implement it completely, with tests. Run the tests.
3. When the tests pass, run: autocode close-issue <id> --comment "<summary of what was done>"
   This marks the issue done and queues it for audit. Do not edit labels yourself.
4. If you finish early, pick the next issue and repeat.

Leave the working tree clean. If you cannot finish an issue, move it back to
Todo with a comment describing where you stopped.
`, specFile)
}

func auditPrompt(specFile string) string {
	return fmt.Sprintf(`You are a quality auditor reviewing completed work.

The specification is in %s. For this session:

1. List done issues labeled "awaiting-audit".
2. For each, verify the implementation against the spec and run its tests.
3. If it passes, swap the "awaiting-audit" label for "audited" and comment
   with your findings. If it fails, reopen the issue with a comment
   describing the defect.
4. When done, run: autocode audit-done --passed <n>

Do not implement new features in this session. Review only.
`, specFile)
}
