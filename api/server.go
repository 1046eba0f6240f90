// Package api is the bundled workspace dev server. It serves the same
// HTTP surface the hosted service exposes, backed by an in-memory
// State, so the sync layer can run against something real during
// development and in tests.
package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"collabhive-sync/domain"
)

const requestBodyMaxSize = 1 << 20 // 1 MiB

// Register wires up all workspace routes on the provided Echo instance.
func Register(e *echo.Echo, st *State, logger *log.Logger) {
	e.GET("/api/projects/:id", getProject(st))
	e.PUT("/api/projects/:id", putProject(st, logger))
	e.GET("/api/members", getMembers(st))
	e.POST("/api/members", postMember(st, logger))
	e.DELETE("/api/members/:id", deleteMember(st, logger))
	e.GET("/api/tasks", getTasks(st))
	e.POST("/api/tasks", postTask(st, logger))
	e.PUT("/api/tasks/:id", putTask(st, logger))
	e.GET("/api/documents/:id", getDocument(st))
	e.PUT("/api/documents/:id", putDocument(st, logger))
	e.GET("/healthz", healthz())
}

type errorResponse struct {
	Error string `json:"error"`
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	return sonic.ConfigStd.NewDecoder(lr).Decode(out)
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getProject(st *State) echo.HandlerFunc {
	return func(c echo.Context) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		if c.Param("id") != st.project.ID {
			return notFound(c, "Project not found")
		}
		return c.JSON(http.StatusOK, st.project)
	}
}

type projectUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func putProject(st *State, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var upd projectUpdate
		if err := decodeBody(c, &upd); err != nil {
			return badRequest(c, "invalid body")
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		if c.Param("id") != st.project.ID {
			return notFound(c, "Project not found")
		}
		if upd.Title != nil {
			if strings.TrimSpace(*upd.Title) == "" {
				return badRequest(c, "Title is required")
			}
			st.project.Title = *upd.Title
		}
		if upd.Description != nil {
			st.project.Description = *upd.Description
		}
		st.project.UpdatedAt = timestamp()
		logger.WithFields(log.Fields{"project": st.project.ID}).Debug("project updated")
		return c.JSON(http.StatusOK, st.project)
	}
}

func getMembers(st *State) echo.HandlerFunc {
	return func(c echo.Context) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		members := make([]domain.Member, len(st.members))
		copy(members, st.members)
		return c.JSON(http.StatusOK, members)
	}
}

func postMember(st *State, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var m domain.Member
		if err := decodeBody(c, &m); err != nil {
			return badRequest(c, "invalid body")
		}
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Email) == "" {
			return badRequest(c, "Name and email are required")
		}
		if m.Role == "" {
			m.Role = domain.RoleViewer
		}
		if !m.Role.Valid() {
			return badRequest(c, "Invalid role")
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		for _, existing := range st.members {
			if strings.EqualFold(existing.Email, m.Email) {
				return c.JSON(http.StatusConflict, errorResponse{Error: "Email already exists"})
			}
		}
		if m.ID == "" {
			m.ID = newID("user")
		}
		st.members = append(st.members, m)
		logger.WithFields(log.Fields{"member": m.ID, "role": m.Role}).Debug("member added")
		return c.JSON(http.StatusCreated, m)
	}
}

func deleteMember(st *State, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		st.mu.Lock()
		defer st.mu.Unlock()
		for i, m := range st.members {
			if m.ID != id {
				continue
			}
			if m.Role == domain.RoleOwner {
				return badRequest(c, "Cannot remove the project owner")
			}
			st.members = append(st.members[:i], st.members[i+1:]...)
			logger.WithFields(log.Fields{"member": id}).Debug("member removed")
			return c.NoContent(http.StatusNoContent)
		}
		return notFound(c, "Member not found")
	}
}

func getTasks(st *State) echo.HandlerFunc {
	return func(c echo.Context) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		tasks := make([]domain.Task, len(st.tasks))
		copy(tasks, st.tasks)
		return c.JSON(http.StatusOK, tasks)
	}
}

func postTask(st *State, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var t domain.Task
		if err := decodeBody(c, &t); err != nil {
			return badRequest(c, "invalid body")
		}
		if strings.TrimSpace(t.Title) == "" {
			return badRequest(c, "Title is required")
		}
		if t.Status == "" {
			t.Status = domain.StatusTodo
		}
		if !t.Status.Valid() {
			return badRequest(c, "Invalid status")
		}
		if t.Priority == "" {
			t.Priority = domain.PriorityMedium
		}
		if !t.Priority.Valid() {
			return badRequest(c, "Invalid priority")
		}
		t.Assignee = domain.NormalizeAssignee(t.Assignee)
		st.mu.Lock()
		defer st.mu.Unlock()
		if t.ID == "" {
			t.ID = newID("task")
		}
		st.tasks = append(st.tasks, t)
		logger.WithFields(log.Fields{"task": t.ID}).Debug("task added")
		return c.JSON(http.StatusCreated, t)
	}
}

type taskUpdate struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *domain.TaskStatus   `json:"status"`
	Assignee    *string              `json:"assignee"`
	DueDate     *string              `json:"dueDate"`
	Priority    *domain.TaskPriority `json:"priority"`
}

func putTask(st *State, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var upd taskUpdate
		if err := decodeBody(c, &upd); err != nil {
			return badRequest(c, "invalid body")
		}
		id := c.Param("id")
		st.mu.Lock()
		defer st.mu.Unlock()
		for i := range st.tasks {
			if st.tasks[i].ID != id {
				continue
			}
			t := &st.tasks[i]
			if upd.Title != nil {
				if strings.TrimSpace(*upd.Title) == "" {
					return badRequest(c, "Title is required")
				}
				t.Title = *upd.Title
			}
			if upd.Description != nil {
				t.Description = *upd.Description
			}
			if upd.Status != nil {
				if !upd.Status.Valid() {
					return badRequest(c, "Invalid status")
				}
				t.Status = *upd.Status
			}
			if upd.Assignee != nil {
				t.Assignee = domain.NormalizeAssignee(*upd.Assignee)
			}
			if upd.DueDate != nil {
				t.DueDate = *upd.DueDate
			}
			if upd.Priority != nil {
				if !upd.Priority.Valid() {
					return badRequest(c, "Invalid priority")
				}
				t.Priority = *upd.Priority
			}
			logger.WithFields(log.Fields{"task": id}).Debug("task updated")
			return c.JSON(http.StatusOK, *t)
		}
		return notFound(c, "Task not found")
	}
}

func getDocument(st *State) echo.HandlerFunc {
	return func(c echo.Context) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		if c.Param("id") != st.document.ID {
			return notFound(c, "Document not found")
		}
		return c.JSON(http.StatusOK, st.document)
	}
}

type documentUpdate struct {
	Notes *string `json:"notes"`
	Code  *string `json:"code"`
}

func putDocument(st *State, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var upd documentUpdate
		if err := decodeBody(c, &upd); err != nil {
			return badRequest(c, "invalid body")
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		if c.Param("id") != st.document.ID {
			return notFound(c, "Document not found")
		}
		if upd.Notes != nil {
			st.document.Notes = *upd.Notes
		}
		if upd.Code != nil {
			st.document.Code = *upd.Code
		}
		st.document.UpdatedAt = timestamp()
		logger.WithFields(log.Fields{"document": st.document.ID}).Debug("document saved")
		return c.JSON(http.StatusOK, st.document)
	}
}
