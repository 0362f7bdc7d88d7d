// Package inactivity provides per-session inactivity timers.
package inactivity

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// DefaultTimeout is the inactivity window used when none is configured.
const DefaultTimeout = 300 * time.Second

type entry struct {
	timer *time.Timer
	token uint64
}

// Monitor holds at most one one-shot timer per session.
type Monitor struct {
	mu      sync.Mutex
	timeout time.Duration
	timers  map[string]*entry
	next    uint64
}

// NewMonitor creates a monitor that fires after timeout.
// A non-positive timeout selects DefaultTimeout.
func NewMonitor(timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Monitor{
		timeout: timeout,
		timers:  make(map[string]*entry),
	}
}

// Arm schedules fire for sessionID, replacing any timer already armed.
// fire runs on its own goroutine and must re-validate the session.
func (m *Monitor) Arm(sessionID string, fire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked(sessionID)

	m.next++
	token := m.next
	e := &entry{token: token}
	e.timer = time.AfterFunc(m.timeout, func() {
		if !m.claim(sessionID, token) {
			return
		}
		zlog.Info().Msgf("inactivity timeout: session=%s timeout=%v", sessionID, m.timeout)
		fire()
	})
	m.timers[sessionID] = e
	zlog.Debug().Msgf("inactivity: armed: session=%s timeout=%v", sessionID, m.timeout)
}

// Cancel aborts the session's timer, if any.
func (m *Monitor) Cancel(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked(sessionID)
}

// Armed reports whether a timer is live for sessionID.
func (m *Monitor) Armed(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[sessionID]
	return ok
}

// Count returns the number of live timers.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Close cancels every timer.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.timers {
		m.cancelLocked(id)
	}
}

// claim removes the entry if it still belongs to token.
func (m *Monitor) claim(sessionID string, token uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.timers[sessionID]
	if !ok || e.token != token {
		return false
	}
	delete(m.timers, sessionID)
	return true
}

func (m *Monitor) cancelLocked(sessionID string) {
	if e, ok := m.timers[sessionID]; ok {
		e.timer.Stop()
		delete(m.timers, sessionID)
		zlog.Debug().Msgf("inactivity: cancelled: session=%s", sessionID)
	}
}
