// Package filter provides the filter chain for request validation.
package filter

import (
	"context"
	"sort"

	"github.com/osa030/voicebox/internal/domain/listener"
	"github.com/osa030/voicebox/internal/domain/track"
)

// QueueReader gives filters read access to a session queue.
type QueueReader interface {
	GetAllTracks() []track.QueuedTrack
}

// TrackRequest represents a play request to be validated.
type TrackRequest struct {
	SessionID   string
	RequesterID string
	Query       string
	Queue       QueueReader // Current and pending tracks of the target session
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Filter   string // Name of the rejecting filter
	Code     string // e.g., "user_pending", "blocked", "duplicate_track"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for request filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given requester type.
	AppliesTo(requesterType track.RequesterType) bool
	// Check performs the filter check.
	Check(ctx context.Context, req TrackRequest, t track.Track, l *listener.Listener) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// Names returns the registered filter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
