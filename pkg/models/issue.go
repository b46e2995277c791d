package models

import "time"

// IssueStatus is the generic status of a tracked issue, independent of any
// particular backend's workflow states.
type IssueStatus string

const (
	StatusTodo       IssueStatus = "todo"
	StatusInProgress IssueStatus = "in_progress"
	StatusDone       IssueStatus = "done"
	StatusCanceled   IssueStatus = "canceled"
)

// IssuePriority is a generic priority level. Lower is more urgent.
type IssuePriority int

const (
	PriorityUrgent IssuePriority = 1
	PriorityHigh   IssuePriority = 2
	PriorityMedium IssuePriority = 3
	PriorityLow    IssuePriority = 4
)

// Team is a team in the task management system.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Project is a container of issues.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TeamIDs     []string  `json:"team_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Label categorizes issues. The harness relies on two well-known labels:
// "awaiting-audit" and "audited".
type Label struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Comment is a comment on an issue.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	Body      string    `json:"body"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is a tracked unit of work.
type Issue struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      IssueStatus   `json:"status"`
	Priority    IssuePriority `json:"priority"`
	ProjectID   string        `json:"project_id,omitempty"`
	Labels      []Label       `json:"labels,omitempty"`
	CreatedAt   time.Time     `json:"created_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at,omitempty"`
}

// HasLabel reports whether the issue carries a label with the given name.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// IssueCreate holds the fields for creating an issue.
type IssueCreate struct {
	Title       string
	Description string
	ProjectID   string
	Status      IssueStatus
	Priority    IssuePriority
	LabelIDs    []string
}

// IssueUpdate holds the fields for updating an issue. Nil pointer fields are
// left unchanged. AddLabelIDs and RemoveLabelIDs adjust the label set;
// LabelIDs, if non-nil, replaces it entirely.
type IssueUpdate struct {
	Title          *string
	Description    *string
	Status         *IssueStatus
	Priority       *IssuePriority
	LabelIDs       []string
	AddLabelIDs    []string
	RemoveLabelIDs []string
}

// IssueFilter selects issues for list operations. Zero values mean "any".
// LabelNames requires issues to carry all of the named labels.
type IssueFilter struct {
	ProjectID  string
	Status     IssueStatus
	LabelNames []string
	Limit      int
}
