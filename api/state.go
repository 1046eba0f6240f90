package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"collabhive-sync/domain"
)

// State is the in-memory workspace behind the dev server. It stands in
// for the real remote service during local development and in tests.
type State struct {
	mu       sync.Mutex
	project  domain.Project
	members  []domain.Member
	tasks    []domain.Task
	document domain.Document
}

// NewState creates an empty workspace for the given project id.
func NewState(projectID string) *State {
	now := timestamp()
	return &State{
		project: domain.Project{
			ID:        projectID,
			Title:     "Untitled project",
			CreatedAt: now,
			UpdatedAt: now,
		},
		document: domain.Document{
			ID:        projectID,
			Notes:     "# Project Notes\n\nThis is a collaborative space for the team to share notes and ideas.",
			Code:      "// Example code",
			UpdatedAt: now,
		},
	}
}

// Seed fills the workspace with the demo data the original system
// ships for first runs.
func Seed(projectID string) *State {
	st := NewState(projectID)
	st.project.Title = "CollabHive Project Hub"
	st.project.Description = "A collaborative workspace for teams to manage projects, tasks, and share documents."
	st.members = []domain.Member{
		{ID: "user-1", Name: "John Doe", Email: "john@example.com", Role: domain.RoleOwner},
		{ID: "user-2", Name: "Jane Smith", Email: "jane@example.com", Role: domain.RoleEditor},
		{ID: "user-3", Name: "Bob Johnson", Email: "bob@example.com", Role: domain.RoleViewer},
	}
	st.tasks = []domain.Task{
		{
			ID:          "task-1",
			Title:       "Setup project structure",
			Description: "Create initial project structure and component hierarchy",
			Status:      domain.StatusCompleted,
			Assignee:    "user-1",
			Owner:       "user-1",
			DueDate:     "2025-04-02",
			Priority:    domain.PriorityHigh,
		},
		{
			ID:          "task-2",
			Title:       "Design UI components",
			Description: "Create designs for all the required UI components",
			Status:      domain.StatusInProgress,
			Assignee:    "user-2",
			Owner:       "user-1",
			DueDate:     "2025-04-10",
			Priority:    domain.PriorityMedium,
		},
		{
			ID:          "task-3",
			Title:       "Implement collaborative editor",
			Description: "Add real-time collaboration features to the editor",
			Status:      domain.StatusTodo,
			Assignee:    domain.Unassigned,
			Owner:       "user-1",
			DueDate:     "2025-04-15",
			Priority:    domain.PriorityHigh,
		},
	}
	st.document.Notes = "# Project Notes\n\nThis is a collaborative space for the team to share notes and ideas.\n\n## Goals\n- Create a user-friendly interface\n- Implement real-time collaboration\n- Integrate with existing systems"
	st.document.Code = "// Example code\nfunction calculateProjectProgress(tasks) {\n  const completed = tasks.filter(task => task.status === 'Completed').length;\n  return (completed / tasks.length) * 100;\n}"
	return st
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05")
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
