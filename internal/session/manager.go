// Package session tracks per-operator cascade state. Each session owns one
// cascade; sessions idle past the TTL are evicted and, when a snapshot store
// is configured, can be rehydrated from their last persisted snapshot.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"intake/internal/cascade"
	"intake/pkg/platform/sentinel"
)

// Session pairs a session id with its cascade.
type Session struct {
	ID      string
	Cascade *cascade.Cascade

	createdAt  time.Time
	lastActive time.Time
}

// Manager owns the live session table.
type Manager struct {
	factory func() *cascade.Cascade
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. factory builds a fresh cascade per session;
// store may be nil to disable snapshot persistence.
func NewManager(factory func() *cascade.Cascade, store Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:  factory,
		store:    store,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with an empty cascade.
func (m *Manager) Create(ctx context.Context) *Session {
	now := m.now()
	s := &Session{
		ID:         uuid.NewString(),
		Cascade:    m.factory(),
		createdAt:  now,
		lastActive: now,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "session created", "session_id", s.ID)
	return s
}

// Get returns the live session and refreshes its activity stamp. A session
// missing from the live table is rehydrated from the snapshot store when one
// is configured; an idle session past the TTL is evicted and reported
// expired.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	now := m.now()
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && now.Sub(s.lastActive) > m.ttl {
		delete(m.sessions, id)
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "session expired", "session_id", id)
		return nil, sentinel.ErrExpired
	}
	if ok {
		s.lastActive = now
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil, sentinel.ErrNotFound
	}
	snap, found, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, sentinel.ErrNotFound
	}

	s = &Session{ID: id, Cascade: m.factory(), createdAt: now, lastActive: now}
	s.Cascade.Restore(snap)
	m.mu.Lock()
	// Another request may have rehydrated concurrently; first one wins.
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "session rehydrated from snapshot", "session_id", id)
	return s, nil
}

// Persist saves the session's current snapshot. Best-effort: callers log
// and continue on error.
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, s.ID, s.Cascade.Snapshot(), m.ttl)
}

// Delete drops the session from the live table and the snapshot store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, id)
}

// Len reports the live session count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts idle sessions every interval until ctx is done, persisting a
// final snapshot for each when a store is configured.
func (m *Manager) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	now := m.now()
	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.lastActive) > m.ttl {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		if m.store != nil {
			if err := m.store.Save(ctx, s.ID, s.Cascade.Snapshot(), m.ttl); err != nil {
				m.logger.WarnContext(ctx, "snapshot on eviction failed",
					"session_id", s.ID, "error", err)
			}
		}
		m.logger.InfoContext(ctx, "idle session evicted", "session_id", s.ID)
	}
}
