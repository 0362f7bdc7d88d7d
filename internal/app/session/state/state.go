package state

import (
	"sync"
	"time"

	"github.com/osa030/voicebox/internal/domain/listener"
	"github.com/osa030/voicebox/internal/domain/track"
)

// Session holds the mutable state of one playback session.
// Mutations are issued by the session's playback engine only; the lock
// lets other goroutines take consistent snapshots.
type Session struct {
	mu sync.RWMutex

	// Session identity
	id        string
	createdAt time.Time

	// Queue
	pending []*track.QueuedTrack
	current *track.QueuedTrack

	// Output
	connected  bool
	channelRef string

	// Requesters seen in this session
	listeners map[string]*listener.Listener
}

// New creates a new session state.
func New(sessionID string) *Session {
	return &Session{
		id:        sessionID,
		createdAt: time.Now(),
		pending:   make([]*track.QueuedTrack, 0),
		listeners: make(map[string]*listener.Listener),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Push appends a track to the pending queue and returns its 1-based position.
func (s *Session) Push(qt *track.QueuedTrack) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, qt)
	s.listenerLocked(qt.Requester).IncrementPendingTracks()
	return len(s.pending)
}

// PopNext moves the head of the pending queue into the current slot.
// It returns false and leaves current untouched when nothing is pending.
func (s *Session) PopNext() (*track.QueuedTrack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil, false
	}

	qt := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.current = qt

	if l, ok := s.listeners[qt.Requester.ID]; ok {
		l.DecrementPendingTracks()
	}
	return qt, true
}

// ClearCurrent empties the current slot and returns the previous track.
func (s *Session) ClearCurrent() *track.QueuedTrack {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = nil
	return prev
}

// Clear empties both the pending queue and the current slot.
// It returns the tracks that were pending.
func (s *Session) Clear() []*track.QueuedTrack {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.pending
	s.pending = make([]*track.QueuedTrack, 0)
	s.current = nil
	for _, l := range s.listeners {
		l.PendingTracks = 0
	}
	return removed
}

// Current returns the currently playing track.
func (s *Session) Current() (*track.QueuedTrack, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

// PendingLen returns the number of pending tracks.
func (s *Session) PendingLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// SetConnected records the output connection status.
func (s *Session) SetConnected(connected bool, channelRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	s.channelRef = channelRef
}

// IsConnected returns true if the session has a live output connection.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// ChannelRef returns the channel the output is connected to.
func (s *Session) ChannelRef() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelRef
}

// Snapshot returns a read-only copy of the queue with at most limit upcoming
// tracks. A non-positive limit returns all pending tracks.
func (s *Session) Snapshot(limit int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.pending)
	if limit > 0 && n > limit {
		n = limit
	}

	upcoming := make([]*track.QueuedTrack, n)
	copy(upcoming, s.pending[:n])

	return Snapshot{
		SessionID: s.id,
		Current:   s.current,
		Upcoming:  upcoming,
		Truncated: len(s.pending) > n,
		Remaining: len(s.pending) - n,
	}
}

// GetAllTracks returns the current track followed by every pending track.
func (s *Session) GetAllTracks() []track.QueuedTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]track.QueuedTrack, 0, len(s.pending)+1)
	if s.current != nil {
		result = append(result, *s.current)
	}
	for _, qt := range s.pending {
		result = append(result, *qt)
	}
	return result
}

// Listener returns a copy of the requester's record, creating it if needed.
func (s *Session) Listener(r track.Requester) *listener.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenerLocked(r).Clone()
}

// Listeners returns copies of all requester records.
func (s *Session) Listeners() []*listener.Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*listener.Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		result = append(result, l.Clone())
	}
	return result
}

// listenerLocked must be called with s.mu held for writing.
func (s *Session) listenerLocked(r track.Requester) *listener.Listener {
	l, ok := s.listeners[r.ID]
	if !ok {
		l = listener.New(r.ID, r.Name)
		s.listeners[r.ID] = l
	}
	return l
}
