// Package mutate turns UI mutation intents into remote API calls and
// keeps the cache honest about them: validation happens locally before
// dispatch, success invalidates exactly the target entity key, and
// failure leaves the cache untouched.
package mutate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collabhive-sync/domain"
	"collabhive-sync/store"
)

// Kind names a mutation intent.
type Kind string

const (
	KindAddMember        Kind = "addMember"
	KindRemoveMember     Kind = "removeMember"
	KindAddTask          Kind = "addTask"
	KindUpdateTaskStatus Kind = "updateTaskStatus"
	KindUpdateProject    Kind = "updateProject"
	KindSaveDocument     Kind = "saveDocument"
)

// API is the mutating surface of the remote client.
type API interface {
	UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	AddMember(ctx context.Context, m domain.Member) (domain.Member, error)
	RemoveMember(ctx context.Context, id string) error
	AddTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error)
	SaveDocument(ctx context.Context, d domain.Document) (domain.Document, error)
}

// Cache is the slice of the data store the coordinator drives. It
// never writes entity values directly; invalidation and overlay
// resolution are its only effects.
type Cache interface {
	Invalidate(key store.Key)
	Members() ([]domain.Member, store.State)
	StageOverlay(key store.Key, tag string, apply func(any) any)
	PromoteOverlay(key store.Key, tag string)
	RollbackOverlay(key store.Key, tag string)
}

// Coordinator validates and dispatches mutation intents.
type Coordinator struct {
	api        API
	cache      Cache
	logger     *log.Logger
	tracer     trace.Tracer
	actingUser string
	optimistic bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger enables mutation metrics logging.
func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithActingUser sets the member id recorded as owner on tasks created
// without one.
func WithActingUser(id string) Option {
	return func(c *Coordinator) { c.actingUser = id }
}

// WithOptimistic stages a pending overlay for each mutation before
// dispatch. Overlays are promoted on success and rolled back on
// failure; they can never outlive the mutation unresolved.
func WithOptimistic() Option {
	return func(c *Coordinator) { c.optimistic = true }
}

// New creates a coordinator issuing mutations through api and
// invalidating cache on success.
func New(api API, cache Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:    api,
		cache:  cache,
		tracer: otel.Tracer("collabhive-sync/mutate"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateProject replaces the project's editable fields.
func (c *Coordinator) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	var out domain.Project
	err := c.dispatch(ctx, KindUpdateProject, store.KeyProject,
		func(any) any { return p },
		func(ctx context.Context) error {
			var err error
			out, err = c.api.UpdateProject(ctx, p)
			return err
		})
	return out, err
}

// AddMember creates a team member. Name and email are required; the
// role defaults to Viewer.
func (c *Coordinator) AddMember(ctx context.Context, m domain.Member) (domain.Member, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	if m.Name == "" {
		return domain.Member{}, invalid("name", "must not be empty")
	}
	if m.Email == "" {
		return domain.Member{}, invalid("email", "must not be empty")
	}
	if m.Role == "" {
		m.Role = domain.RoleViewer
	}
	if !m.Role.Valid() {
		return domain.Member{}, invalid("role", "unknown role "+string(m.Role))
	}

	pending := m
	if pending.ID == "" {
		pending.ID = "pending-" + uuid.NewString()
	}
	var out domain.Member
	err := c.dispatch(ctx, KindAddMember, store.KeyMembers,
		func(v any) any {
			list, _ := v.([]domain.Member)
			next := make([]domain.Member, 0, len(list)+1)
			next = append(next, list...)
			return append(next, pending)
		},
		func(ctx context.Context) error {
			var err error
			out, err = c.api.AddMember(ctx, m)
			return err
		})
	return out, err
}

// RemoveMember deletes a member. Removing an Owner is rejected locally
// so the workspace always keeps one.
func (c *Coordinator) RemoveMember(ctx context.Context, id string) error {
	members, _ := c.cache.Members()
	if m, ok := domain.FindMember(members, id); ok && m.Role == domain.RoleOwner {
		return invalid("member", "the project owner cannot be removed")
	}

	return c.dispatch(ctx, KindRemoveMember, store.KeyMembers,
		func(v any) any {
			list, _ := v.([]domain.Member)
			next := make([]domain.Member, 0, len(list))
			for _, m := range list {
				if m.ID != id {
					next = append(next, m)
				}
			}
			return next
		},
		func(ctx context.Context) error {
			return c.api.RemoveMember(ctx, id)
		})
}

// AddTask creates a task. An empty title is rejected locally; status
// defaults to Todo, priority to Medium, and the owner to the acting
// user.
func (c *Coordinator) AddTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return domain.Task{}, invalid("title", "must not be empty")
	}
	t.Assignee = domain.NormalizeAssignee(t.Assignee)
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	if !t.Status.Valid() {
		return domain.Task{}, invalid("status", "unknown status "+string(t.Status))
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !t.Priority.Valid() {
		return domain.Task{}, invalid("priority", "unknown priority "+string(t.Priority))
	}
	if t.Owner == "" {
		t.Owner = c.actingUser
	}

	pending := t
	if pending.ID == "" {
		pending.ID = "pending-" + uuid.NewString()
	}
	var out domain.Task
	err := c.dispatch(ctx, KindAddTask, store.KeyTasks,
		func(v any) any {
			list, _ := v.([]domain.Task)
			next := make([]domain.Task, 0, len(list)+1)
			next = append(next, list...)
			return append(next, pending)
		},
		func(ctx context.Context) error {
			var err error
			out, err = c.api.AddTask(ctx, t)
			return err
		})
	return out, err
}

// UpdateTaskStatus moves a task to the given status.
func (c *Coordinator) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, invalid("status", "unknown status "+string(status))
	}

	var out domain.Task
	err := c.dispatch(ctx, KindUpdateTaskStatus, store.KeyTasks,
		func(v any) any {
			list, _ := v.([]domain.Task)
			next := make([]domain.Task, len(list))
			copy(next, list)
			for i := range next {
				if next[i].ID == id {
					next[i].Status = status
				}
			}
			return next
		},
		func(ctx context.Context) error {
			var err error
			out, err = c.api.UpdateTaskStatus(ctx, id, status)
			return err
		})
	return out, err
}

// SaveDocument replaces both blobs of the shared document.
func (c *Coordinator) SaveDocument(ctx context.Context, d domain.Document) (domain.Document, error) {
	var out domain.Document
	err := c.dispatch(ctx, KindSaveDocument, store.KeyDocument,
		func(v any) any {
			prev, _ := v.(domain.Document)
			prev.Notes = d.Notes
			prev.Code = d.Code
			return prev
		},
		func(ctx context.Context) error {
			var err error
			out, err = c.api.SaveDocument(ctx, d)
			return err
		})
	return out, err
}

// dispatch runs the remote call with the shared plumbing: optional
// optimistic overlay, tracing, metrics, and the success-only
// invalidation of the target key.
func (c *Coordinator) dispatch(ctx context.Context, kind Kind, key store.Key, overlayFn func(any) any, call func(context.Context) error) (err error) {
	ctx, span := c.tracer.Start(ctx, "mutate."+string(kind),
		trace.WithAttributes(
			attribute.String("mutation.kind", string(kind)),
			attribute.String("cache.key", string(key)),
		))
	metrics := newMutationMetrics(c.logger, kind, key)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		metrics.Log(err)
	}()

	tag := ""
	if c.optimistic && overlayFn != nil {
		tag = uuid.NewString()
		c.cache.StageOverlay(key, tag, overlayFn)
	}

	start := time.Now()
	err = call(ctx)
	metrics.ObserveDispatch(time.Since(start))
	if err != nil {
		if tag != "" {
			c.cache.RollbackOverlay(key, tag)
		}
		metrics.SetErrorStage("dispatch")
		return err
	}

	if tag != "" {
		c.cache.PromoteOverlay(key, tag)
	}
	c.cache.Invalidate(key)
	return nil
}
