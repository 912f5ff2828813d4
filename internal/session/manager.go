// Package session tracks per-client state across HTTP requests and
// websocket reconnects.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Session is one client's live state: the server-side store driving its
// view, plus bookkeeping for expiry.
type Session struct {
	ID         string
	State      any
	CreatedAt  time.Time
	LastAccess time.Time
}

// Manager handles session lifecycle.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
}

// NewManager creates a session manager. A zero ttl defaults to 24 hours.
func NewManager(ttl time.Duration) *Manager {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new session holding state.
func (m *Manager) Create(state any) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:         id,
		State:      state,
		CreatedAt:  time.Now(),
		LastAccess: time.Now(),
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get retrieves a session by id, refreshing its last access time. Expired
// sessions are dropped on access.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, false
	}
	if time.Since(s.LastAccess) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	s.LastAccess = time.Now()
	return s, true
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Cleanup removes every expired session and returns how many were dropped.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if time.Since(s.LastAccess) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
