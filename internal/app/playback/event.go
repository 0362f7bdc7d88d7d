package playback

import "github.com/osa030/voicebox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted  EventType = iota // Track started playing
	EventTrackFailed                    // Track could not start or failed mid-stream
	EventQueueEmpty                     // Nothing left to play, inactivity timer armed
	EventSessionClosed                  // Session was torn down
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackFailed:
		return "track_failed"
	case EventQueueEmpty:
		return "queue_empty"
	case EventSessionClosed:
		return "session_closed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type      EventType
	SessionID string
	Track     *track.QueuedTrack // Track concerned (nil for some events)
	State     State              // Playback state after the transition
	Err       error              // Set for EventTrackFailed
}
