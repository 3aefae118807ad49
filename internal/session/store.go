package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"intake/internal/cascade"
)

// Store persists cascade snapshots so a session can outlive the process that
// created it. Save overwrites; Load reports presence explicitly.
type Store interface {
	Save(ctx context.Context, id string, snap cascade.Snapshot, ttl time.Duration) error
	Load(ctx context.Context, id string) (cascade.Snapshot, bool, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps snapshots in process. Default when Redis is not
// configured; snapshots then share the process lifetime anyway.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]memorySnap
}

type memorySnap struct {
	snap      cascade.Snapshot
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]memorySnap)}
}

func (s *MemoryStore) Save(_ context.Context, id string, snap cascade.Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[id] = memorySnap{snap: snap, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (cascade.Snapshot, bool, error) {
	s.mu.RLock()
	entry, ok := s.snaps[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return cascade.Snapshot{}, false, nil
	}
	return entry.snap, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	return nil
}

// RedisStore persists snapshots in Redis with the session TTL, letting a
// replica pick up a session after the owning process restarts.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id string) string {
	return "intake:session:" + id
}

func (s *RedisStore) Save(ctx context.Context, id string, snap cascade.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (cascade.Snapshot, bool, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return cascade.Snapshot{}, false, nil
	}
	if err != nil {
		return cascade.Snapshot{}, false, fmt.Errorf("load session snapshot: %w", err)
	}
	var snap cascade.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return cascade.Snapshot{}, false, fmt.Errorf("decode session snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session snapshot: %w", err)
	}
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
