package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/autocode-ai/autocode/pkg/models"
)

func printSessionHeader(w io.Writer, iteration int, mode models.SessionMode) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "  SESSION %d: %s\n", iteration, strings.ToUpper(string(mode)))
	fmt.Fprintf(w, "%s\n\n", rule)
}

// printProgress summarizes cached project state. Ground truth lives in the
// task backend; this is the local view the last sessions left behind.
func printProgress(w io.Writer, st *models.ProjectState, auditThreshold int) {
	if st == nil || !st.Initialized {
		fmt.Fprintln(w, "Progress: project not yet initialized")
		return
	}

	fmt.Fprintf(w, "Project status (%s):\n", st.AdapterType)
	fmt.Fprintf(w, "  Total issues created: %d\n", st.TotalIssues)
	fmt.Fprintf(w, "  META issue: %s\n", st.MetaIssueID)

	if st.AuditsCompleted > 0 || st.PendingAudit() > 0 {
		fmt.Fprintf(w, "\nAudit status:\n")
		fmt.Fprintf(w, "  Audits completed: %d\n", st.AuditsCompleted)
		fmt.Fprintf(w, "  Awaiting audit: %d\n", st.PendingAudit())
		switch {
		case st.PendingAudit() >= auditThreshold:
			fmt.Fprintln(w, "  Audit threshold reached, next session will be an audit")
		case st.PendingAudit() > auditThreshold/2:
			fmt.Fprintf(w, "  Approaching audit threshold (%d/%d)\n", st.PendingAudit(), auditThreshold)
		}
	}
}
