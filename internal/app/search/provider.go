// Package search provides free-text search providers used to pick a track
// before it is extracted.
package search

import (
	"context"
	"strings"
	"time"
)

// Candidate is a search hit that still needs stream extraction.
type Candidate struct {
	URL      string        // Canonical page URL
	Title    string        // Display title
	Artist   string        // Channel or artist (may be empty)
	Duration time.Duration // Zero when the provider does not report it
	Source   string        // Display name of the provider
}

// Provider is the interface for search providers.
type Provider interface {
	// Search returns up to limit candidates in relevance order.
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)

	// Name returns the provider type (used in config).
	Name() string
}

const (
	youtubeWatchURL = "https://www.youtube.com/watch?v="
	ytmusicWatchURL = "https://music.youtube.com/watch?v="
)

// parseColonDuration parses "3:20" or "1:05:20". Anything else yields zero.
func parseColonDuration(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total int
	for _, p := range parts {
		n := 0
		if p == "" {
			return 0
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return 0
			}
			n = n*10 + int(r-'0')
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}
