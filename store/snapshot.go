package store

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"collabhive-sync/domain"
)

// Snapshots mirrors confirmed entity values to Redis, scoped by
// project id, so a fresh session can render stale data immediately
// while the first refetch runs. All operations are best-effort: Redis
// being down never fails a fetch, and corrupt entries are deleted.
type Snapshots struct {
	client *redis.Client
	scope  string
	ttl    time.Duration
}

// NewSnapshots creates a snapshot mirror on the given client. A nil
// client disables the mirror.
func NewSnapshots(client *redis.Client, scope string, ttl time.Duration) *Snapshots {
	if ttl < 0 {
		ttl = 0
	}
	return &Snapshots{client: client, scope: scope, ttl: ttl}
}

func (sn *Snapshots) key(k Key) string {
	return "workspace:" + sn.scope + ":" + string(k)
}

func (sn *Snapshots) store(ctx context.Context, k Key, val any) {
	if sn == nil || sn.client == nil || sn.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(val)
	if err != nil {
		return
	}
	_ = sn.client.Set(ctx, sn.key(k), data, sn.ttl).Err()
}

func (sn *Snapshots) load(ctx context.Context, k Key) ([]byte, bool) {
	if sn == nil || sn.client == nil {
		return nil, false
	}
	data, err := sn.client.Get(ctx, sn.key(k)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = sn.client.Del(ctx, sn.key(k)).Err()
		}
		return nil, false
	}
	return data, true
}

func (sn *Snapshots) evict(ctx context.Context, keys ...Key) {
	if sn == nil || sn.client == nil {
		return
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = sn.key(k)
	}
	_, _ = sn.client.Del(ctx, names...).Result()
}

// Warm seeds empty cache entries from the snapshot mirror. Seeded
// entries are stale, so the next read schedules a confirming refetch.
func (s *Store) Warm(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	for _, key := range Keys() {
		data, ok := s.snapshots.load(ctx, key)
		if !ok {
			continue
		}
		val, err := decodeSnapshot(key, data)
		if err != nil {
			s.snapshots.evict(ctx, key)
			continue
		}
		s.mu.Lock()
		e := s.ensureLocked(key)
		if !e.hasValue && e.inflight == nil {
			e.value = val
			e.hasValue = true
			e.stale = true
		}
		s.mu.Unlock()
	}
}

func decodeSnapshot(key Key, data []byte) (any, error) {
	switch key {
	case KeyProject:
		var p domain.Project
		err := sonic.Unmarshal(data, &p)
		return p, err
	case KeyMembers:
		var m []domain.Member
		err := sonic.Unmarshal(data, &m)
		return m, err
	case KeyTasks:
		var t []domain.Task
		err := sonic.Unmarshal(data, &t)
		return t, err
	case KeyDocument:
		var d domain.Document
		err := sonic.Unmarshal(data, &d)
		return d, err
	}
	return nil, errors.New("store: unknown snapshot key " + string(key))
}
