package streaming

import "sync"

// Manager is the process-wide registry mapping session id to Session.
// The singleton streaming manager becomes this explicitly-constructed,
// explicitly-started value owned by the process bootstrap, rather than
// teacher-style global mutable state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

// CreateSession replaces any prior session registered under id by
// asynchronously stopping it, then registers and returns a fresh Session.
func (m *Manager) CreateSession(id string) *Session {
	m.mu.Lock()
	prior, existed := m.sessions[id]
	next := NewSession(id)
	m.sessions[id] = next
	m.mu.Unlock()

	if existed {
		go prior.Stop()
	}
	return next
}

// Get returns the session registered under id, if any.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// CloseSession stops and unregisters the session under id, if any.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Stop()
	}
}

// CloseAll stops and unregisters every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range all {
		s.Stop()
	}
}
