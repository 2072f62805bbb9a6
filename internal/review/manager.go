package review

import (
	"sync"
	"time"
)

// Manager is a thread-safe in-memory session registry with TTL eviction.
// An evicted or deleted session is closed, which clears its poll timers.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
}

type entry struct {
	session *Session
	touched time.Time
}

// NewManager creates a registry. Sessions idle longer than ttl are removed
// by Cleanup.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		ttl:      ttl,
	}
}

func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{session: s, touched: time.Now()}
}

// Get returns the session and refreshes its idle timer.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil
	}
	e.touched = time.Now()
	return e.session
}

// Delete removes and closes a session. No-op for unknown ids.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		e.session.Close()
	}
}

// Cleanup closes and removes sessions idle past the TTL.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	now := time.Now()
	var expired []*Session
	for id, e := range m.sessions {
		if now.Sub(e.touched) > m.ttl {
			expired = append(expired, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range expired {
		s.Close()
	}
}

// CloseAll tears down every session, for server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		all = append(all, e.session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
