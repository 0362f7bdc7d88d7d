// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Track represents a resolved, playable media item.
// Values are produced once by the resolver and never mutated afterwards.
type Track struct {
	ID           string        // Extractor-specific media ID (may be empty)
	Title        string        // Display title
	Artist       string        // Uploader or main artist (may be empty)
	URL          string        // Canonical (web page) URL
	StreamURL    string        // Direct stream endpoint, usually time-limited
	Duration     time.Duration // Zero when unknown (live streams)
	ThumbnailURL string        // Thumbnail URL (may be empty)
	Source       string        // Search provider or extractor that produced the track
}

// RequesterType represents the type of requester.
type RequesterType string

const (
	RequesterTypeUser   RequesterType = "USER"
	RequesterTypeSystem RequesterType = "SYSTEM"
)

// Requester represents the person who requested the track.
type Requester struct {
	ID      string        // Platform user ID
	Name    string        // Display name
	Mention string        // Platform mention markup (e.g. "<@123>")
	Type    RequesterType // Type of requester
}

// QueuedTrack represents a track in a session's playback queue.
type QueuedTrack struct {
	Track     Track     // Resolved media
	Requester Requester // Requester info
	AddedAt   time.Time // Time when resolved and accepted
}

// HasDuration reports whether the duration is known.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}

// DurationFormatted returns the duration as MM:SS, HH:MM:SS when at least an
// hour long, or "N/A" when unknown.
func (t *Track) DurationFormatted() string {
	if !t.HasDuration() {
		return "N/A"
	}
	total := int(t.Duration / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// DisplayURL returns the canonical URL, falling back to the stream endpoint.
func (t *Track) DisplayURL() string {
	if t.URL != "" {
		return t.URL
	}
	return t.StreamURL
}
