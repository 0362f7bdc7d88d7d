package playback

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrResolutionFailed = errors.New("resolution failed")
	ErrConnectFailed    = errors.New("connect failed")
	ErrNotConnected     = errors.New("not connected")
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrSessionClosed    = errors.New("session is closed")
	ErrRegistryFull     = errors.New("session registry is full")
	ErrNotPaused        = errors.New("not paused")
	ErrRateLimited      = errors.New("rate limited")
	ErrRejected         = errors.New("request rejected")
	ErrNoVoiceChannel   = errors.New("requester is not in a voice channel")
)

// RejectedError is returned when a filter rejects a request.
type RejectedError struct {
	Filter string
	Code   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("request rejected: filter=%s code=%s", e.Filter, e.Code)
}

// NewRejectedError returns a RejectedError marked as ErrRejected.
func NewRejectedError(filterName, code string) error {
	return errors.Mark(&RejectedError{Filter: filterName, Code: code}, ErrRejected)
}

// RejectionCode returns the filter code carried by err, if any.
func RejectionCode(err error) (string, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// ErrorCode maps err to the message code used for user-facing replies.
// Unknown errors map to "default".
func ErrorCode(err error) string {
	if code, ok := RejectionCode(err); ok {
		return code
	}
	switch {
	case errors.Is(err, ErrNoVoiceChannel):
		return "no_voice_channel"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrResolutionFailed):
		return "resolution_failed"
	case errors.Is(err, ErrConnectFailed):
		return "connect_failed"
	case errors.Is(err, ErrRegistryFull):
		return "registry_full"
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrSessionClosed):
		return "not_connected"
	case errors.Is(err, ErrNothingPlaying):
		return "nothing_playing"
	case errors.Is(err, ErrNotPaused):
		return "not_paused"
	case errors.Is(err, ErrQueueEmpty):
		return "queue_empty"
	default:
		return "default"
	}
}
