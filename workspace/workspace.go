// Package workspace composes the sync layer into the surface a project
// page consumes: typed reads over the cached entities, task-board
// projection, inline edit sessions, and the mutation entry points.
package workspace

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"collabhive-sync/domain"
	"collabhive-sync/editor"
	"collabhive-sync/mutate"
	"collabhive-sync/store"
	"collabhive-sync/view"
)

// Backend is the full remote surface a workspace needs: the reads the
// store caches and the mutations the coordinator dispatches. The
// remote client implements it.
type Backend interface {
	store.Fetcher
	mutate.API
}

// Workspace wires one project's store, coordinator and projections
// together.
type Workspace struct {
	store   *store.Store
	mutator *mutate.Coordinator
	logger  *log.Logger
	now     func() time.Time
}

// Option configures a Workspace.
type Option func(*config)

type config struct {
	logger     *log.Logger
	snapshots  *store.Snapshots
	actingUser string
	optimistic bool
	now        func() time.Time
}

// WithLogger enables structured logging across the store and
// coordinator.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithSnapshots enables the Redis warm-start mirror.
func WithSnapshots(snap *store.Snapshots) Option {
	return func(c *config) { c.snapshots = snap }
}

// WithActingUser sets the member id recorded as owner on tasks created
// without one.
func WithActingUser(id string) Option {
	return func(c *config) { c.actingUser = id }
}

// WithOptimistic enables pending overlays on mutations.
func WithOptimistic() Option {
	return func(c *config) { c.optimistic = true }
}

// WithClock overrides the time source used for due-date bucketing.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// New creates a workspace over the given backend.
func New(backend Backend, opts ...Option) *Workspace {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	var storeOpts []store.Option
	if cfg.logger != nil {
		storeOpts = append(storeOpts, store.WithLogger(cfg.logger))
	}
	if cfg.snapshots != nil {
		storeOpts = append(storeOpts, store.WithSnapshots(cfg.snapshots))
	}
	st := store.New(backend, storeOpts...)

	var mutOpts []mutate.Option
	if cfg.logger != nil {
		mutOpts = append(mutOpts, mutate.WithLogger(cfg.logger))
	}
	if cfg.actingUser != "" {
		mutOpts = append(mutOpts, mutate.WithActingUser(cfg.actingUser))
	}
	if cfg.optimistic {
		mutOpts = append(mutOpts, mutate.WithOptimistic())
	}

	return &Workspace{
		store:   st,
		mutator: mutate.New(backend, st, mutOpts...),
		logger:  cfg.logger,
		now:     cfg.now,
	}
}

// Warm seeds the cache from the snapshot mirror, if one is configured.
func (w *Workspace) Warm(ctx context.Context) {
	w.store.Warm(ctx)
}

// Refresh fetches every entity, returning the first error. Entities
// that fetched successfully stay cached either way.
func (w *Workspace) Refresh(ctx context.Context) error {
	var first error
	for _, key := range store.Keys() {
		if _, err := w.store.Fetch(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Project returns the cached project.
func (w *Workspace) Project() (domain.Project, store.State) {
	return w.store.Project()
}

// Members returns the cached member set.
func (w *Workspace) Members() ([]domain.Member, store.State) {
	return w.store.Members()
}

// Tasks returns the cached task list.
func (w *Workspace) Tasks() ([]domain.Task, store.State) {
	return w.store.Tasks()
}

// Document returns the cached document.
func (w *Workspace) Document() (domain.Document, store.State) {
	return w.store.Document()
}

// RenderTasks projects the cached tasks into display rows under the
// given filter and sort. The returned state is the task entry's; a
// loading or errored member fetch only degrades name resolution.
func (w *Workspace) RenderTasks(f view.Filter, s view.Sort) ([]view.Row, store.State) {
	tasks, st := w.store.Tasks()
	members, _ := w.store.Members()
	return view.Rows(tasks, members, f, s, w.now()), st
}

// AddTask creates a task through the coordinator.
func (w *Workspace) AddTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return w.mutator.AddTask(ctx, t)
}

// AddMember adds a team member.
func (w *Workspace) AddMember(ctx context.Context, m domain.Member) (domain.Member, error) {
	return w.mutator.AddMember(ctx, m)
}

// RemoveMember removes a team member.
func (w *Workspace) RemoveMember(ctx context.Context, id string) error {
	return w.mutator.RemoveMember(ctx, id)
}

// UpdateTaskStatus moves a task to the given status.
func (w *Workspace) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	return w.mutator.UpdateTaskStatus(ctx, id, status)
}

// UpdateProject replaces the project's editable fields.
func (w *Workspace) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	return w.mutator.UpdateProject(ctx, p)
}

// SaveDocument replaces both document blobs.
func (w *Workspace) SaveDocument(ctx context.Context, d domain.Document) (domain.Document, error) {
	return w.mutator.SaveDocument(ctx, d)
}

// TitleField returns an edit session for the project title. Committing
// dispatches an UpdateProject carrying the rest of the cached record.
func (w *Workspace) TitleField() *editor.Field {
	p, _ := w.store.Project()
	return editor.NewField(editor.SingleLine, p.Title, func(title string) {
		cur, _ := w.store.Project()
		cur.Title = title
		w.saveInBackground("title", func(ctx context.Context) error {
			_, err := w.mutator.UpdateProject(ctx, cur)
			return err
		})
	})
}

// DescriptionField returns an edit session for the project
// description.
func (w *Workspace) DescriptionField() *editor.Field {
	p, _ := w.store.Project()
	return editor.NewField(editor.MultiLine, p.Description, func(desc string) {
		cur, _ := w.store.Project()
		cur.Description = desc
		w.saveInBackground("description", func(ctx context.Context) error {
			_, err := w.mutator.UpdateProject(ctx, cur)
			return err
		})
	})
}

// NotesField returns an edit session for the document notes blob. Both
// blobs are sent together on commit, the unedited one from cache.
func (w *Workspace) NotesField() *editor.Field {
	d, _ := w.store.Document()
	return editor.NewField(editor.MultiLine, d.Notes, func(notes string) {
		cur, _ := w.store.Document()
		cur.Notes = notes
		w.saveInBackground("notes", func(ctx context.Context) error {
			_, err := w.mutator.SaveDocument(ctx, cur)
			return err
		})
	})
}

// CodeField returns an edit session for the document code blob.
func (w *Workspace) CodeField() *editor.Field {
	d, _ := w.store.Document()
	return editor.NewField(editor.MultiLine, d.Code, func(code string) {
		cur, _ := w.store.Document()
		cur.Code = code
		w.saveInBackground("code", func(ctx context.Context) error {
			_, err := w.mutator.SaveDocument(ctx, cur)
			return err
		})
	})
}

// saveInBackground runs a field commit without blocking the edit
// session. Failures surface through the mutation's own logging and the
// next refetch; here they are only recorded.
func (w *Workspace) saveInBackground(field string, call func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	go func() {
		defer cancel()
		if err := call(ctx); err != nil && w.logger != nil {
			w.logger.WithFields(log.Fields{
				"field": field,
				"error": err.Error(),
			}).Warn("workspace.field.save")
		}
	}()
}
