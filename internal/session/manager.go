package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/example/scamshield/internal/kvstore"
	"github.com/example/scamshield/internal/landing"
)

// Manager owns all live sessions.
type Manager struct {
	store   kvstore.Store
	scanner landing.Scanner
	clock   clockwork.Clock
	ttl     time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a session manager. Pages it mounts write sentinels to
// store and await scanner.
func NewManager(store kvstore.Store, scanner landing.Scanner, clock clockwork.Clock, ttl time.Duration, logger *zap.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		store:    store,
		scanner:  scanner,
		clock:    clock,
		ttl:      ttl,
		logger:   logger.Named("session_manager"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := &Session{ID: uuid.NewString(), mount: m.mountPage}
	s.touch(m.clock.Now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("session created", zap.String("session_id", s.ID))
	return s
}

// Lookup returns a live session and marks it as seen.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.touch(m.clock.Now())
	}
	return s, ok
}

// Sentinels returns the sentinel store view for a session.
func (m *Manager) Sentinels(sessionID string) *kvstore.Scoped {
	return kvstore.NewScoped(m.store, sessionID, m.ttl, m.logger)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and closes their
// pages. It returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.clock.Now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince(now) > m.ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

// Close closes every session's page.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (m *Manager) mountPage(s *Session) *landing.Page {
	return landing.NewPage(landing.Deps{
		SessionID: s.ID,
		Notifier:  s,
		Navigator: s,
		Sentinels: m.Sentinels(s.ID),
		Scanner:   m.scanner,
		Logger:    m.logger,
	})
}
