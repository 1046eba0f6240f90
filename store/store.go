// Package store caches the four workspace entity collections and keeps
// them in sync with the remote API. It is the only owner of
// server-confirmed state: fetch completions and invalidations are the
// only writes, and every read goes through it.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"collabhive-sync/domain"
)

// Key identifies one of the cached entity collections.
type Key string

const (
	KeyProject  Key = "project"
	KeyMembers  Key = "members"
	KeyTasks    Key = "tasks"
	KeyDocument Key = "document"
)

// Keys lists every entity key in warm-up order.
func Keys() []Key {
	return []Key{KeyProject, KeyMembers, KeyTasks, KeyDocument}
}

// Fetcher abstracts the remote API reads the store depends on.
type Fetcher interface {
	Project(ctx context.Context) (domain.Project, error)
	Members(ctx context.Context) ([]domain.Member, error)
	Tasks(ctx context.Context) ([]domain.Task, error)
	Document(ctx context.Context) (domain.Document, error)
}

// State describes a cache entry as seen by a reader. Loading with
// HasValue false is the explicit "no data yet" signal; HasValue true
// with Err non-nil means stale data behind a failed refresh.
type State struct {
	HasValue bool
	Loading  bool
	Stale    bool
	Err      error
}

type flight struct {
	gen  uint64
	done chan struct{}
}

type entry struct {
	value    any
	hasValue bool
	err      error
	stale    bool
	// gen is the latest requested fetch generation; completions with an
	// older generation were superseded and are discarded.
	gen      uint64
	inflight *flight
	overlays []overlay
}

// Store is the per-session cache of server-confirmed entities.
type Store struct {
	mu      sync.Mutex
	fetcher Fetcher
	entries map[Key]*entry

	logger       *log.Logger
	snapshots    *Snapshots
	fetchTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger enables structured fetch logging.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithSnapshots mirrors confirmed values to Redis so a later session
// can warm-start from stale data.
func WithSnapshots(snap *Snapshots) Option {
	return func(s *Store) { s.snapshots = snap }
}

// WithFetchTimeout bounds background refetches. Zero keeps the default
// of 30 seconds.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// New creates an empty store reading through the given fetcher.
func New(fetcher Fetcher, opts ...Option) *Store {
	s := &Store{
		fetcher:      fetcher,
		entries:      make(map[Key]*entry, 4),
		fetchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the last known value and the entry's state without
// blocking. A stale entry with no refetch running gets one scheduled.
func (s *Store) Get(key Key) (any, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(key)
	if e.stale && e.inflight == nil {
		s.startFetchLocked(key, e)
	}
	return s.composeLocked(e), s.stateLocked(e)
}

// Fetch returns a fresh value for the key, issuing a remote call only
// when needed. Concurrent calls for the same key attach to the one
// in-flight request. A failed fetch returns the error even when a
// stale value remains readable through Get.
func (s *Store) Fetch(ctx context.Context, key Key) (any, error) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	if e.hasValue && !e.stale && e.inflight == nil && e.err == nil {
		v := s.composeLocked(e)
		s.mu.Unlock()
		return v, nil
	}
	if e.inflight == nil {
		s.startFetchLocked(key, e)
	}
	// Wait out the current flight; a superseding invalidation swaps in
	// a newer one, so loop until the entry settles.
	for e.inflight != nil {
		fl := e.inflight
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-fl.done:
		}
		s.mu.Lock()
	}
	v, err := s.composeLocked(e), e.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate marks the key stale and starts a replacement fetch. A
// refetch already in flight is superseded: its result will be
// discarded in favor of the new request.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	e.stale = true
	s.startFetchLocked(key, e)
	s.mu.Unlock()

	if s.snapshots != nil {
		go s.snapshots.evict(context.Background(), key)
	}
}

// Project returns the cached project.
func (s *Store) Project() (domain.Project, State) {
	v, st := s.Get(KeyProject)
	p, _ := v.(domain.Project)
	return p, st
}

// Members returns the cached member set.
func (s *Store) Members() ([]domain.Member, State) {
	v, st := s.Get(KeyMembers)
	m, _ := v.([]domain.Member)
	return m, st
}

// Tasks returns the cached task list.
func (s *Store) Tasks() ([]domain.Task, State) {
	v, st := s.Get(KeyTasks)
	t, _ := v.([]domain.Task)
	return t, st
}

// Document returns the cached document.
func (s *Store) Document() (domain.Document, State) {
	v, st := s.Get(KeyDocument)
	d, _ := v.(domain.Document)
	return d, st
}

func (s *Store) ensureLocked(key Key) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

func (s *Store) stateLocked(e *entry) State {
	return State{
		HasValue: e.hasValue,
		Loading:  e.inflight != nil,
		Stale:    e.stale,
		Err:      e.err,
	}
}

// startFetchLocked bumps the entry generation and launches the fetch.
// Callers hold s.mu.
func (s *Store) startFetchLocked(key Key, e *entry) {
	e.gen++
	fl := &flight{gen: e.gen, done: make(chan struct{})}
	e.inflight = fl
	go s.runFetch(key, fl)
}

func (s *Store) runFetch(key Key, fl *flight) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	val, err := s.fetchValue(ctx, key)
	cancel()

	s.mu.Lock()
	e := s.entries[key]
	superseded := fl.gen != e.gen
	if !superseded {
		if err == nil {
			e.value = val
			e.hasValue = true
			e.err = nil
			e.stale = false
			s.clearPromotedLocked(e)
		} else {
			// Keep the last good value; the error stays observable on
			// the entry until a later fetch succeeds.
			e.err = err
		}
		if e.inflight == fl {
			e.inflight = nil
		}
	}
	s.mu.Unlock()
	close(fl.done)

	if !superseded && err == nil && s.snapshots != nil {
		s.snapshots.store(context.Background(), key, val)
	}

	if s.logger != nil {
		fields := log.Fields{
			"key":        string(key),
			"gen":        fl.gen,
			"superseded": superseded,
			"total_ms":   float64(time.Since(start)) / float64(time.Millisecond),
		}
		if err != nil {
			fields["error"] = err.Error()
			s.logger.WithFields(fields).Warn("store.fetch")
			return
		}
		s.logger.WithFields(fields).Debug("store.fetch")
	}
}

func (s *Store) fetchValue(ctx context.Context, key Key) (any, error) {
	switch key {
	case KeyProject:
		return s.fetcher.Project(ctx)
	case KeyMembers:
		return s.fetcher.Members(ctx)
	case KeyTasks:
		return s.fetcher.Tasks(ctx)
	case KeyDocument:
		return s.fetcher.Document(ctx)
	}
	return nil, fmt.Errorf("store: unknown key %q", key)
}
