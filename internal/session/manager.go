package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ManagerConfig tunes the per-browser store registry.
type ManagerConfig struct {
	TTL         time.Duration
	IdleEvict   time.Duration
	LoadTimeout time.Duration
}

// Manager keeps one live Store per browser session id.
type Manager struct {
	client redis.Cmdable
	auth   Authenticator
	logger *slog.Logger
	cfg    ManagerConfig
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

// NewManager constructs a Manager backed by Redis.
func NewManager(client redis.Cmdable, auth Authenticator, logger *slog.Logger, cfg ManagerConfig) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleEvict <= 0 {
		cfg.IdleEvict = 30 * time.Minute
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 5 * time.Second
	}
	return &Manager{
		client:  client,
		auth:    auth,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the store bound to sessionID, creating and hydrating it in
// the background when it is not live yet.
func (m *Manager) Acquire(ctx context.Context, sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[sessionID]; ok {
		e.lastSeen = m.now()
		return e.store
	}

	store := NewStore(
		NewRedisStorage(m.client, sessionID, m.cfg.TTL),
		m.auth,
		m.logger.With(slog.String("session", shortID(sessionID))),
	)
	m.entries[sessionID] = &entry{store: store, lastSeen: m.now()}

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.LoadTimeout)
	go func() {
		defer cancel()
		store.Initialize(loadCtx)
	}()
	return store
}

// Forget drops the live store for sessionID. Persisted state is untouched.
// A store whose logout could not clear storage stays live, so the id keeps
// resolving to an anonymous store until the sweep clears storage.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[sessionID]; ok && e.store.ClearPending() {
		return
	}
	delete(m.entries, sessionID)
}

// Len reports the number of live stores.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Evict drops stores idle for longer than the configured window. Stores with
// an authentication attempt in flight are kept, and so are stores whose
// pending identity clear fails again.
func (m *Manager) Evict(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.IdleEvict)

	m.mu.Lock()
	idle := make(map[string]*Store)
	for id, e := range m.entries {
		if e.lastSeen.After(cutoff) || e.store.Snapshot().Pending {
			continue
		}
		idle[id] = e.store
	}
	m.mu.Unlock()

	evicted := 0
	for id, store := range idle {
		if err := store.RetryClear(ctx); err != nil {
			m.logger.Warn("retry identity clear", slog.String("session", shortID(id)), slog.Any("error", err))
			continue
		}
		m.mu.Lock()
		if e, ok := m.entries[id]; ok && e.store == store && !e.lastSeen.After(cutoff) {
			delete(m.entries, id)
			evicted++
		}
		m.mu.Unlock()
	}
	return evicted
}

// Run evicts idle stores until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.IdleEvict / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Evict(ctx); n > 0 {
				m.logger.Debug("evicted idle sessions", slog.Int("count", n))
			}
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
