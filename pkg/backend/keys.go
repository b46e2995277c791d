package backend

import "time"

// Cache keys follow a resource:id[:collection] convention so write
// operations can invalidate related entries by pattern.

func issueKey(id string) string         { return "issue:" + id }
func issueCommentsKey(id string) string { return "issue:" + id + ":comments" }
func projectKey(id string) string       { return "project:" + id }
func projectIssuesKey(id string) string { return "project:" + id + ":issues" }
func teamProjectsKey(id string) string  { return "team:" + id + ":projects" }

const (
	allProjectsKey = "projects"
	labelsKey      = "labels"
	teamsKey       = "teams"
)

// Per-endpoint TTLs. Issue data moves fast; projects and teams rarely change.
const (
	ttlIssueList = 5 * time.Minute
	ttlIssueGet  = 3 * time.Minute
	ttlComments  = 3 * time.Minute
	ttlProject   = time.Hour
	ttlLabels    = time.Hour
	ttlTeams     = 24 * time.Hour
)
