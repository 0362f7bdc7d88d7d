// Package listener provides the per-session Listener domain entity.
package listener

import "time"

// Listener tracks one requester's activity inside a playback session.
type Listener struct {
	ID            string     // Platform user ID
	DisplayName   string     // Display name
	PendingTracks int        // Tracks accepted but not yet started
	TotalRequests int        // Total accepted request count
	JoinedAt      time.Time  // First request time
	LastRequestAt *time.Time // Last accepted request time
}

// New creates a new listener record.
func New(id, displayName string) *Listener {
	return &Listener{
		ID:          id,
		DisplayName: displayName,
		JoinedAt:    time.Now(),
	}
}

// IncrementPendingTracks increments the pending tracks count.
func (l *Listener) IncrementPendingTracks() {
	l.PendingTracks++
	l.TotalRequests++
	now := time.Now()
	l.LastRequestAt = &now
}

// DecrementPendingTracks decrements the pending tracks count.
// Called when a track starts playing or is dropped from the queue.
func (l *Listener) DecrementPendingTracks() {
	if l.PendingTracks > 0 {
		l.PendingTracks--
	}
}

// Clone returns a copy safe to hand outside the owning session.
func (l *Listener) Clone() *Listener {
	c := *l
	if l.LastRequestAt != nil {
		t := *l.LastRequestAt
		c.LastRequestAt = &t
	}
	return &c
}
