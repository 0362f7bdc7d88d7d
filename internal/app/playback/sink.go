package playback

import (
	"context"

	"github.com/osa030/voicebox/internal/domain/track"
)

// Sink is the audio output owned by one session.
//
// Play starts streaming and returns once the stream is running. onFinished is
// called exactly once, from another goroutine, when the stream ends for any
// reason: natural end (nil), Stop (nil) or a mid-stream failure (non-nil).
// When Play returns an error onFinished is never called.
type Sink interface {
	Play(ctx context.Context, qt *track.QueuedTrack, onFinished func(error)) error
	Stop() error
	Pause() error
	Resume() error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	IsPlaying() bool
	IsPaused() bool
}

// Connector joins or moves a session's output to a channel.
type Connector interface {
	Connect(ctx context.Context, sessionID, channelRef string) (Sink, error)
}

// Timer arms and cancels per-session inactivity timers.
type Timer interface {
	Arm(sessionID string, fire func())
	Cancel(sessionID string)
	Armed(sessionID string) bool
}
