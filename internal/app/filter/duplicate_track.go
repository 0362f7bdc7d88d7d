package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/voicebox/internal/domain/listener"
	"github.com/osa030/voicebox/internal/domain/track"
)

// DuplicateTrackFilter checks for duplicate tracks in the session queue.
// Detects:
// - Same canonical URL or media ID
// - Remasters and alternate versions (normalized title + same artist)
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct{}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already playing or queued, including remasters. Covers by other artists are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which requester types this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(requesterType track.RequesterType) bool {
	return requesterType == track.RequesterTypeUser
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(
	ctx context.Context,
	req TrackRequest,
	requestedTrack track.Track,
	l *listener.Listener,
) Result {
	if req.Queue == nil {
		return Accept()
	}

	for _, queued := range req.Queue.GetAllTracks() {
		// 1. Same media
		if isSameMedia(queued.Track, requestedTrack) {
			return Reject("duplicate_track")
		}

		// 2. Remaster detection: normalized title + same artist
		if f.isRemaster(queued.Track, requestedTrack) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

// isSameMedia compares canonical URLs and extractor IDs.
func isSameMedia(track1, track2 track.Track) bool {
	if track1.URL != "" && track1.URL == track2.URL {
		return true
	}
	return track1.ID != "" && track1.Source == track2.Source && track1.ID == track2.ID
}

// isRemaster checks if two tracks are the same song (remaster/different version).
// Returns true if:
// - Normalized titles match
// - Artist is the same
func (f *DuplicateTrackFilter) isRemaster(track1, track2 track.Track) bool {
	name1 := normalizeTrackName(track1.Title)
	name2 := normalizeTrackName(track2.Title)

	// If normalized names don't match, they're different songs
	if name1 != name2 {
		return false
	}

	// Same normalized name - check if same artist
	// If different artists, it's a cover song (allowed)
	return isSameArtist(track1, track2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	// Upload decorations common on video platforms
	uploadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[]\s*official\s*(music\s*)?(video|audio|mv|visualizer)\s*[\)\]]`), // "(Official Video)"
		regexp.MustCompile(`\s*[\(\[]\s*lyrics?(\s*video)?\s*[\)\]]`),                                // "[Lyric Video]"
		regexp.MustCompile(`\s*[\(\[]\s*(hd|hq|4k)\s*[\)\]]`),                                        // "(HD)"
	}

	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*live`),             // "- Live"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster, upload and version decorations.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range uploadPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

// isSameArtist checks if two tracks have the same artist.
func isSameArtist(track1, track2 track.Track) bool {
	if track1.Artist == "" || track2.Artist == "" {
		return false
	}
	return strings.EqualFold(track1.Artist, track2.Artist)
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return &DuplicateTrackFilter{}
	})
}
