// Package state provides per-session playback state.
package state

import "github.com/osa030/voicebox/internal/domain/track"

// Snapshot is a read-only copy of a session queue.
// Tracks are shared by pointer and must not be mutated.
type Snapshot struct {
	SessionID string
	Current   *track.QueuedTrack
	Upcoming  []*track.QueuedTrack // At most the requested limit, in play order
	Truncated bool                 // More tracks are pending than Upcoming holds
	Remaining int                  // Number of pending tracks not in Upcoming
}

// IsEmpty reports whether nothing is playing and nothing is pending.
func (s Snapshot) IsEmpty() bool {
	return s.Current == nil && len(s.Upcoming) == 0
}

// PendingCount returns the total number of pending tracks.
func (s Snapshot) PendingCount() int {
	return len(s.Upcoming) + s.Remaining
}
