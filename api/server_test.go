package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"collabhive-sync/domain"
)

func testServer(st *State) *echo.Echo {
	e := echo.New()
	Register(e, st, log.New())
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetProject(t *testing.T) {
	e := testServer(Seed("proj-1"))

	rec := doJSON(t, e, http.MethodGet, "/api/projects/proj-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var p domain.Project
	if err := sonic.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if p.Title != "CollabHive Project Hub" {
		t.Fatalf("unexpected project: %#v", p)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/projects/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
	var body errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Error != "Project not found" {
		t.Fatalf("unexpected error body: %q", body.Error)
	}
}

func TestPutProject(t *testing.T) {
	e := testServer(Seed("proj-1"))

	rec := doJSON(t, e, http.MethodPut, "/api/projects/proj-1", `{"title":"Renamed","description":"New desc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var p domain.Project
	if err := sonic.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if p.Title != "Renamed" || p.Description != "New desc" {
		t.Fatalf("unexpected project: %#v", p)
	}
	if p.UpdatedAt == "" {
		t.Fatal("expected updatedAt to be set")
	}

	rec = doJSON(t, e, http.MethodPut, "/api/projects/proj-1", `{"title":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for blank title got %d", rec.Code)
	}
}

func TestPostMemberDuplicateEmail(t *testing.T) {
	e := testServer(Seed("proj-1"))

	rec := doJSON(t, e, http.MethodPost, "/api/members", `{"name":"Dup","email":"JOHN@example.com"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
	var body errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Error != "Email already exists" {
		t.Fatalf("unexpected error body: %q", body.Error)
	}
}

func TestPostMemberAssignsIDAndRole(t *testing.T) {
	e := testServer(NewState("proj-1"))

	rec := doJSON(t, e, http.MethodPost, "/api/members", `{"name":"Ada","email":"ada@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var m domain.Member
	if err := sonic.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if m.ID == "" || !strings.HasPrefix(m.ID, "user-") {
		t.Fatalf("expected server-assigned id, got %q", m.ID)
	}
	if m.Role != domain.RoleViewer {
		t.Fatalf("expected default role Viewer, got %q", m.Role)
	}
}

func TestDeleteMember(t *testing.T) {
	e := testServer(Seed("proj-1"))

	rec := doJSON(t, e, http.MethodDelete, "/api/members/user-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 removing owner got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodDelete, "/api/members/user-3", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodDelete, "/api/members/user-3", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after removal got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/members", "")
	var members []domain.Member
	if err := sonic.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members left, got %d", len(members))
	}
}

func TestPostTaskDefaultsAndNormalization(t *testing.T) {
	e := testServer(NewState("proj-1"))

	rec := doJSON(t, e, http.MethodPost, "/api/tasks", `{"title":"Ship v1","assignee":"Unassigned"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var task domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if task.ID == "" {
		t.Fatal("expected server-assigned id")
	}
	if task.Status != domain.StatusTodo || task.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults: %#v", task)
	}
	if task.Assignee != domain.Unassigned {
		t.Fatalf("expected assignee normalized to empty, got %q", task.Assignee)
	}

	rec = doJSON(t, e, http.MethodPost, "/api/tasks", `{"title":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for blank title got %d", rec.Code)
	}
}

func TestPutTaskStatus(t *testing.T) {
	e := testServer(Seed("proj-1"))

	rec := doJSON(t, e, http.MethodPut, "/api/tasks/task-3", `{"status":"Completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var task domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if task.Status != domain.StatusCompleted {
		t.Fatalf("expected Completed, got %q", task.Status)
	}
	if task.Title != "Implement collaborative editor" {
		t.Fatalf("expected other fields untouched, got %#v", task)
	}

	rec = doJSON(t, e, http.MethodPut, "/api/tasks/task-3", `{"status":"Done"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown status got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPut, "/api/tasks/ghost", `{"status":"Completed"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	e := testServer(Seed("proj-1"))

	rec := doJSON(t, e, http.MethodPut, "/api/documents/proj-1", `{"notes":"# Updated","code":"let x = 1;"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/documents/proj-1", "")
	var d domain.Document
	if err := sonic.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if d.Notes != "# Updated" || d.Code != "let x = 1;" {
		t.Fatalf("unexpected document: %#v", d)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/documents/other", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := testServer(NewState("proj-1"))
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
}
