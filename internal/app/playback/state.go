// Package playback provides the per-session playback engine.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No track current
	StatePlaying              // A track is current (possibly paused)
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
