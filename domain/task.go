package domain

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task. Wire values match the
// remote API ("Todo", "In Progress", "Completed").
type TaskStatus string

const (
	StatusTodo       TaskStatus = "Todo"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"
)

// Valid reports whether the status is one of the known wire values.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

// Rank maps a priority to its sort weight. Unknown priorities rank
// below Low so malformed data sinks instead of surfacing.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether the priority is one of the known wire values.
func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Attachment references an uploaded file on a task. The reference is
// opaque to this layer; nothing here uploads or resolves it.
type Attachment struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
}

// Task represents a single work item in the project workspace.
// Assignee and Owner hold member ids; either may dangle after a member
// is removed, and readers must tolerate that.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Assignee    string       `json:"assignee"`
	Owner       string       `json:"owner,omitempty"`
	DueDate     string       `json:"dueDate,omitempty"`
	Priority    TaskPriority `json:"priority"`
	Attachment  *Attachment  `json:"attachedFile,omitempty"`
}

// DueDateLayout is the wire format for task due dates.
const DueDateLayout = "2006-01-02"

// Due parses the task's due date. The second return is false when the
// task has no due date or the value is malformed.
func (t Task) Due() (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DueDateLayout, t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Unassigned is the canonical sentinel for a task without an assignee.
// The original system used both an empty string and a literal
// "unassigned" token depending on the mutation path; everything is
// normalized to the empty string at the API boundary.
const Unassigned = ""

// NormalizeAssignee collapses the legacy assignee spellings into the
// canonical empty-string sentinel.
func NormalizeAssignee(id string) string {
	id = strings.TrimSpace(id)
	if strings.EqualFold(id, "unassigned") {
		return Unassigned
	}
	return id
}
