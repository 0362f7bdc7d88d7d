// Package registry maps session IDs to their playback engines.
package registry

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/voicebox/internal/app/playback"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRegistry manages live sessions with thread-safe access.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*playback.Engine
	max      int
}

// NewSessionRegistry creates a registry holding at most maxSessions sessions.
// A non-positive maxSessions means unbounded.
func NewSessionRegistry(maxSessions int) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*playback.Engine),
		max:      maxSessions,
	}
}

// GetOrCreate returns the session's engine, creating it with create when
// absent. created reports whether create was called.
func (r *SessionRegistry) GetOrCreate(sessionID string, create func() *playback.Engine) (e *playback.Engine, created bool, err error) {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return e, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again under the write lock
	if e, ok := r.sessions[sessionID]; ok {
		return e, false, nil
	}
	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, false, playback.ErrRegistryFull
	}

	e = create()
	r.sessions[sessionID] = e
	return e, true, nil
}

// Get retrieves a session's engine by ID.
func (r *SessionRegistry) Get(sessionID string) (*playback.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// RemoveIf removes the entry only while it still maps to e.
func (r *SessionRegistry) RemoveIf(sessionID string, e *playback.Engine) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[sessionID]
	if !ok || cur != e {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

// All returns all live engines.
func (r *SessionRegistry) All() []*playback.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*playback.Engine, 0, len(r.sessions))
	for _, e := range r.sessions {
		result = append(result, e)
	}
	return result
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
