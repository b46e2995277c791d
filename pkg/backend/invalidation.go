package backend

import (
	"time"

	"github.com/autocode-ai/autocode/pkg/models"
)

// ResponseCache is the cache surface the client and invalidation policy
// depend on. *sqlite.Cache satisfies it.
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Invalidate(key string) error
	InvalidatePattern(pattern string) (int, error)
}

// WriteOp describes a completed write for invalidation purposes.
type WriteOp struct {
	Operation models.Operation
	Endpoint  string
	ID        string // target resource ID
	ProjectID string // owning project, when known
	IssueID   string // owning issue, for comment writes
}

type ruleKey struct {
	op       models.Operation
	endpoint string
}

type keySpec struct {
	pattern bool
	gen     func(WriteOp) string
}

// writeRules is the static table mapping each write operation to the cache
// keys it stales. Generators returning "" are skipped (missing identifiers).
var writeRules = map[ruleKey][]keySpec{
	{models.OpCreate, "issue"}: {
		{gen: func(w WriteOp) string { return maybe(w.ProjectID, projectIssuesKey) }},
	},
	{models.OpUpdate, "issue"}: {
		{gen: func(w WriteOp) string { return maybe(w.ID, issueKey) }},
		{gen: func(w WriteOp) string { return maybe(w.ProjectID, projectIssuesKey) }},
	},
	{models.OpDelete, "issue"}: {
		{gen: func(w WriteOp) string { return maybe(w.ID, issueKey) }},
		{gen: func(w WriteOp) string { return maybe(w.ID, issueCommentsKey) }},
		{gen: func(w WriteOp) string { return maybe(w.ProjectID, projectIssuesKey) }},
	},
	{models.OpCreate, "comment"}: {
		{gen: func(w WriteOp) string { return maybe(w.IssueID, issueKey) }},
		{gen: func(w WriteOp) string { return maybe(w.IssueID, issueCommentsKey) }},
	},
	{models.OpCreate, "project"}: {
		{gen: func(WriteOp) string { return allProjectsKey }},
		{pattern: true, gen: func(WriteOp) string { return `team:[^:]+:projects` }},
	},
	{models.OpUpdate, "project"}: {
		{gen: func(w WriteOp) string { return maybe(w.ID, projectKey) }},
		{gen: func(WriteOp) string { return allProjectsKey }},
		{pattern: true, gen: func(WriteOp) string { return `team:[^:]+:projects` }},
	},
	{models.OpCreate, "label"}: {
		{gen: func(WriteOp) string { return labelsKey }},
	},
}

func maybe(id string, gen func(string) string) string {
	if id == "" {
		return ""
	}
	return gen(id)
}

// Policy maps completed writes to the cache entries they stale.
type Policy struct{}

// Apply removes the cache entries staled by op and returns the number
// removed. It must be invoked strictly after the write succeeds, so a failed
// write cannot leave the cache invalidated for data that never changed.
func (Policy) Apply(op WriteOp, cache ResponseCache) int {
	if cache == nil {
		return 0
	}
	removed := 0
	for _, spec := range writeRules[ruleKey{op.Operation, op.Endpoint}] {
		key := spec.gen(op)
		if key == "" {
			continue
		}
		if spec.pattern {
			n, err := cache.InvalidatePattern(key)
			if err == nil {
				removed += n
			}
			continue
		}
		if err := cache.Invalidate(key); err == nil {
			removed++
		}
	}
	return removed
}
