package mutate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"collabhive-sync/domain"
	"collabhive-sync/store"
)

type stubAPI struct {
	updateProjectFn    func(ctx context.Context, p domain.Project) (domain.Project, error)
	addMemberFn        func(ctx context.Context, m domain.Member) (domain.Member, error)
	removeMemberFn     func(ctx context.Context, id string) error
	addTaskFn          func(ctx context.Context, t domain.Task) (domain.Task, error)
	updateTaskStatusFn func(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error)
	saveDocumentFn     func(ctx context.Context, d domain.Document) (domain.Document, error)
}

func (s *stubAPI) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	if s.updateProjectFn == nil {
		return domain.Project{}, errors.New("unexpected UpdateProject call")
	}
	return s.updateProjectFn(ctx, p)
}

func (s *stubAPI) AddMember(ctx context.Context, m domain.Member) (domain.Member, error) {
	if s.addMemberFn == nil {
		return domain.Member{}, errors.New("unexpected AddMember call")
	}
	return s.addMemberFn(ctx, m)
}

func (s *stubAPI) RemoveMember(ctx context.Context, id string) error {
	if s.removeMemberFn == nil {
		return errors.New("unexpected RemoveMember call")
	}
	return s.removeMemberFn(ctx, id)
}

func (s *stubAPI) AddTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if s.addTaskFn == nil {
		return domain.Task{}, errors.New("unexpected AddTask call")
	}
	return s.addTaskFn(ctx, t)
}

func (s *stubAPI) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	if s.updateTaskStatusFn == nil {
		return domain.Task{}, errors.New("unexpected UpdateTaskStatus call")
	}
	return s.updateTaskStatusFn(ctx, id, status)
}

func (s *stubAPI) SaveDocument(ctx context.Context, d domain.Document) (domain.Document, error) {
	if s.saveDocumentFn == nil {
		return domain.Document{}, errors.New("unexpected SaveDocument call")
	}
	return s.saveDocumentFn(ctx, d)
}

// recordingCache captures every cache interaction in order.
type recordingCache struct {
	mu      sync.Mutex
	members []domain.Member
	events  []string
}

func (r *recordingCache) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingCache) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingCache) Invalidate(key store.Key) { r.record("invalidate:" + string(key)) }

func (r *recordingCache) Members() ([]domain.Member, store.State) {
	return r.members, store.State{HasValue: r.members != nil}
}

func (r *recordingCache) StageOverlay(key store.Key, tag string, apply func(any) any) {
	r.record("stage:" + string(key))
}

func (r *recordingCache) PromoteOverlay(key store.Key, tag string) {
	r.record("promote:" + string(key))
}

func (r *recordingCache) RollbackOverlay(key store.Key, tag string) {
	r.record("rollback:" + string(key))
}

func ownerAndEditor() []domain.Member {
	return []domain.Member{
		{ID: "user-1", Name: "John Doe", Email: "john@example.com", Role: domain.RoleOwner},
		{ID: "user-2", Name: "Jane Smith", Email: "jane@example.com", Role: domain.RoleEditor},
	}
}

func TestAddTaskRejectsEmptyTitleLocally(t *testing.T) {
	cache := &recordingCache{}
	c := New(&stubAPI{}, cache)

	for _, title := range []string{"", "   "} {
		_, err := c.AddTask(context.Background(), domain.Task{Title: title})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("title %q: expected ValidationError, got %v", title, err)
		}
	}
	if evs := cache.Events(); len(evs) != 0 {
		t.Fatalf("rejected intent touched the cache: %v", evs)
	}
}

func TestAddTaskDefaultsAndInvalidation(t *testing.T) {
	cache := &recordingCache{}
	var sent domain.Task
	c := New(&stubAPI{
		addTaskFn: func(ctx context.Context, task domain.Task) (domain.Task, error) {
			sent = task
			task.ID = "task-9"
			return task, nil
		},
	}, cache, WithActingUser("user-1"))

	out, err := c.AddTask(context.Background(), domain.Task{Title: "  Ship v1 ", Assignee: "Unassigned"})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if sent.Title != "Ship v1" {
		t.Fatalf("title not trimmed: %q", sent.Title)
	}
	if sent.Status != domain.StatusTodo || sent.Priority != domain.PriorityMedium {
		t.Fatalf("defaults not applied: %q/%q", sent.Status, sent.Priority)
	}
	if sent.Owner != "user-1" {
		t.Fatalf("owner should default to acting user, got %q", sent.Owner)
	}
	if sent.Assignee != domain.Unassigned {
		t.Fatalf("legacy sentinel not normalized: %q", sent.Assignee)
	}
	if out.ID != "task-9" {
		t.Fatalf("server-assigned id lost: %q", out.ID)
	}

	evs := cache.Events()
	if len(evs) != 1 || evs[0] != "invalidate:tasks" {
		t.Fatalf("expected a single tasks invalidation, got %v", evs)
	}
}

func TestAddMemberValidation(t *testing.T) {
	cache := &recordingCache{}
	c := New(&stubAPI{}, cache)
	ctx := context.Background()

	cases := []domain.Member{
		{Name: "", Email: "a@b.c"},
		{Name: "A", Email: ""},
		{Name: " ", Email: " "},
		{Name: "A", Email: "a@b.c", Role: "Admin"},
	}
	for _, m := range cases {
		_, err := c.AddMember(ctx, m)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("member %#v: expected ValidationError, got %v", m, err)
		}
	}
	if evs := cache.Events(); len(evs) != 0 {
		t.Fatalf("validation touched the cache: %v", evs)
	}
}

func TestAddMemberDefaultsRoleViewer(t *testing.T) {
	cache := &recordingCache{}
	var sent domain.Member
	c := New(&stubAPI{
		addMemberFn: func(ctx context.Context, m domain.Member) (domain.Member, error) {
			sent = m
			m.ID = "user-7"
			return m, nil
		},
	}, cache)

	out, err := c.AddMember(context.Background(), domain.Member{Name: "Bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if sent.Role != domain.RoleViewer {
		t.Fatalf("role default missing: %q", sent.Role)
	}
	if out.ID != "user-7" {
		t.Fatalf("server id lost: %q", out.ID)
	}
	evs := cache.Events()
	if len(evs) != 1 || evs[0] != "invalidate:members" {
		t.Fatalf("expected members invalidation only, got %v", evs)
	}
}

func TestRemoveMemberProtectsOwner(t *testing.T) {
	cache := &recordingCache{members: ownerAndEditor()}
	c := New(&stubAPI{}, cache)

	err := c.RemoveMember(context.Background(), "user-1")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if evs := cache.Events(); len(evs) != 0 {
		t.Fatalf("owner removal touched the cache: %v", evs)
	}
}

func TestRemoveMemberSuccess(t *testing.T) {
	cache := &recordingCache{members: ownerAndEditor()}
	var removed string
	c := New(&stubAPI{
		removeMemberFn: func(ctx context.Context, id string) error {
			removed = id
			return nil
		},
	}, cache)

	if err := c.RemoveMember(context.Background(), "user-2"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if removed != "user-2" {
		t.Fatalf("wrong member removed: %q", removed)
	}
	evs := cache.Events()
	if len(evs) != 1 || evs[0] != "invalidate:members" {
		t.Fatalf("expected members invalidation only, got %v", evs)
	}
}

func TestRemoveMemberUnknownIdGoesToServer(t *testing.T) {
	notFound := errors.New("members.remove: not found")
	cache := &recordingCache{members: ownerAndEditor()}
	c := New(&stubAPI{
		removeMemberFn: func(ctx context.Context, id string) error { return notFound },
	}, cache)

	if err := c.RemoveMember(context.Background(), "user-99"); !errors.Is(err, notFound) {
		t.Fatalf("expected server error to propagate, got %v", err)
	}
	if evs := cache.Events(); len(evs) != 0 {
		t.Fatalf("failed mutation touched the cache: %v", evs)
	}
}

func TestUpdateTaskStatusInvalidStatus(t *testing.T) {
	c := New(&stubAPI{}, &recordingCache{})
	_, err := c.UpdateTaskStatus(context.Background(), "task-1", "Done")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateTaskStatusInvalidatesOnlyTasks(t *testing.T) {
	cache := &recordingCache{}
	c := New(&stubAPI{
		updateTaskStatusFn: func(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
			return domain.Task{ID: id, Status: status}, nil
		},
	}, cache)

	out, err := c.UpdateTaskStatus(context.Background(), "task-1", domain.StatusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if out.Status != domain.StatusCompleted {
		t.Fatalf("unexpected status: %q", out.Status)
	}
	evs := cache.Events()
	if len(evs) != 1 || evs[0] != "invalidate:tasks" {
		t.Fatalf("expected tasks invalidation only, got %v", evs)
	}
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	cache := &recordingCache{}
	boom := errors.New("network down")
	c := New(&stubAPI{
		saveDocumentFn: func(ctx context.Context, d domain.Document) (domain.Document, error) {
			return domain.Document{}, boom
		},
	}, cache)

	if _, err := c.SaveDocument(context.Background(), domain.Document{Notes: "n"}); !errors.Is(err, boom) {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	if evs := cache.Events(); len(evs) != 0 {
		t.Fatalf("failed mutation touched the cache: %v", evs)
	}
}

func TestUpdateProjectInvalidatesProject(t *testing.T) {
	cache := &recordingCache{}
	c := New(&stubAPI{
		updateProjectFn: func(ctx context.Context, p domain.Project) (domain.Project, error) {
			p.UpdatedAt = "2025-04-10T12:00:00"
			return p, nil
		},
	}, cache)

	out, err := c.UpdateProject(context.Background(), domain.Project{ID: "proj-1", Title: "New title"})
	if err != nil {
		t.Fatalf("update project: %v", err)
	}
	if out.UpdatedAt == "" {
		t.Fatalf("server timestamp lost")
	}
	evs := cache.Events()
	if len(evs) != 1 || evs[0] != "invalidate:project" {
		t.Fatalf("expected project invalidation only, got %v", evs)
	}
}

func TestOptimisticSuccessStagesPromotesInvalidates(t *testing.T) {
	cache := &recordingCache{}
	c := New(&stubAPI{
		addTaskFn: func(ctx context.Context, task domain.Task) (domain.Task, error) {
			task.ID = "task-1"
			return task, nil
		},
	}, cache, WithOptimistic())

	if _, err := c.AddTask(context.Background(), domain.Task{Title: "T"}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	want := []string{"stage:tasks", "promote:tasks", "invalidate:tasks"}
	evs := cache.Events()
	if len(evs) != len(want) {
		t.Fatalf("unexpected events: %v", evs)
	}
	for i := range want {
		if evs[i] != want[i] {
			t.Fatalf("event order %v, want %v", evs, want)
		}
	}
}

func TestOptimisticFailureRollsBack(t *testing.T) {
	cache := &recordingCache{}
	c := New(&stubAPI{
		addTaskFn: func(ctx context.Context, task domain.Task) (domain.Task, error) {
			return domain.Task{}, errors.New("rejected")
		},
	}, cache, WithOptimistic())

	if _, err := c.AddTask(context.Background(), domain.Task{Title: "T"}); err == nil {
		t.Fatalf("expected dispatch error")
	}
	want := []string{"stage:tasks", "rollback:tasks"}
	evs := cache.Events()
	if len(evs) != len(want) || evs[0] != want[0] || evs[1] != want[1] {
		t.Fatalf("unexpected events: %v", evs)
	}
}
