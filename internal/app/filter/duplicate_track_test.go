package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/voicebox/internal/domain/listener"
	"github.com/osa030/voicebox/internal/domain/track"
)

// Mock QueueReader for testing
type mockQueue struct {
	tracks []track.QueuedTrack
}

func (m *mockQueue) GetAllTracks() []track.QueuedTrack {
	return m.tracks
}

func queueOf(tracks ...track.Track) *mockQueue {
	q := &mockQueue{}
	for _, t := range tracks {
		q.tracks = append(q.tracks, track.QueuedTrack{
			Track:     t,
			Requester: track.Requester{ID: "user1", Name: "User 1"},
			AddedAt:   time.Now(),
		})
	}
	return q
}

func TestDuplicateTrackFilter_SameMedia(t *testing.T) {
	tests := []struct {
		name      string
		queued    track.Track
		requested track.Track
		reject    bool
	}{
		{
			name:      "same canonical url",
			queued:    track.Track{URL: "https://www.youtube.com/watch?v=fJ9rUzIMcZQ", Title: "Bohemian Rhapsody"},
			requested: track.Track{URL: "https://www.youtube.com/watch?v=fJ9rUzIMcZQ", Title: "Something Else"},
			reject:    true,
		},
		{
			name:      "same extractor id",
			queued:    track.Track{ID: "fJ9rUzIMcZQ", Source: "youtube", Title: "A"},
			requested: track.Track{ID: "fJ9rUzIMcZQ", Source: "youtube", Title: "B"},
			reject:    true,
		},
		{
			name:      "same id from different extractors",
			queued:    track.Track{ID: "123", Source: "soundcloud", Title: "A"},
			requested: track.Track{ID: "123", Source: "youtube", Title: "B"},
			reject:    false,
		},
		{
			name:      "empty ids are not a match",
			queued:    track.Track{Title: "A"},
			requested: track.Track{Title: "B"},
			reject:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &DuplicateTrackFilter{}
			result := f.Check(
				context.Background(),
				TrackRequest{Queue: queueOf(tt.queued)},
				tt.requested,
				&listener.Listener{},
			)
			assert.Equal(t, !tt.reject, result.Accepted)
			if tt.reject {
				assert.Equal(t, "duplicate_track", result.Code)
			}
		})
	}
}

func TestDuplicateTrackFilter_RemasterDetection(t *testing.T) {
	tests := []struct {
		name           string
		queuedTrack    track.Track
		requestedTrack track.Track
		shouldReject   bool
		description    string
	}{
		{
			name:           "Standard remaster pattern",
			queuedTrack:    track.Track{Title: "Bohemian Rhapsody", Artist: "Queen"},
			requestedTrack: track.Track{Title: "Bohemian Rhapsody - 2011 Remaster", Artist: "Queen"},
			shouldReject:   true,
			description:    "Should detect '- 2011 Remaster' as duplicate",
		},
		{
			name:           "Official video upload",
			queuedTrack:    track.Track{Title: "Bohemian Rhapsody", Artist: "Queen"},
			requestedTrack: track.Track{Title: "Bohemian Rhapsody (Official Video Remastered)", Artist: "Queen"},
			shouldReject:   true,
			description:    "Should detect official upload as duplicate",
		},
		{
			name:           "Lyric video upload",
			queuedTrack:    track.Track{Title: "Yesterday", Artist: "The Beatles"},
			requestedTrack: track.Track{Title: "Yesterday [Lyric Video]", Artist: "The Beatles"},
			shouldReject:   true,
			description:    "Should detect lyric video as duplicate",
		},
		{
			name:           "Cover song - different artist",
			queuedTrack:    track.Track{Title: "Yesterday", Artist: "The Beatles"},
			requestedTrack: track.Track{Title: "Yesterday", Artist: "Paul McCartney"},
			shouldReject:   false,
			description:    "Should allow cover by different artist",
		},
		{
			name:           "Different songs - similar names",
			queuedTrack:    track.Track{Title: "Love", Artist: "John Lennon"},
			requestedTrack: track.Track{Title: "Love Song", Artist: "John Lennon"},
			shouldReject:   false,
			description:    "Should allow different songs",
		},
		{
			name:           "Radio Edit version",
			queuedTrack:    track.Track{Title: "Stairway to Heaven", Artist: "Led Zeppelin"},
			requestedTrack: track.Track{Title: "Stairway to Heaven (Radio Edit)", Artist: "Led Zeppelin"},
			shouldReject:   true,
			description:    "Should detect radio edit as duplicate",
		},
		{
			name:           "Remix version - should be allowed",
			queuedTrack:    track.Track{Title: "Le Freak", Artist: "CHIC"},
			requestedTrack: track.Track{Title: "Le Freak (Oliver Heldens Remix)", Artist: "CHIC"},
			shouldReject:   false,
			description:    "Should allow remix version",
		},
		{
			name:           "Unknown artist",
			queuedTrack:    track.Track{Title: "Intro"},
			requestedTrack: track.Track{Title: "Intro"},
			shouldReject:   false,
			description:    "Should not guess without an artist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &DuplicateTrackFilter{}
			result := f.Check(
				context.Background(),
				TrackRequest{Queue: queueOf(tt.queuedTrack)},
				tt.requestedTrack,
				&listener.Listener{},
			)

			if tt.shouldReject {
				assert.False(t, result.Accepted, tt.description)
				assert.Equal(t, "duplicate_track", result.Code)
			} else {
				assert.True(t, result.Accepted, tt.description)
			}
		})
	}
}

func TestDuplicateTrackFilter_EmptyQueue(t *testing.T) {
	f := &DuplicateTrackFilter{}

	result := f.Check(context.Background(), TrackRequest{Queue: queueOf()}, track.Track{Title: "Any Song"}, &listener.Listener{})
	assert.True(t, result.Accepted, "Should accept any track when queue is empty")

	result = f.Check(context.Background(), TrackRequest{}, track.Track{Title: "Any Song"}, &listener.Listener{})
	assert.True(t, result.Accepted, "Should accept when no queue is attached")
}

func TestNormalizeTrackName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Bohemian Rhapsody", "bohemian rhapsody"},
		{"Bohemian Rhapsody - 2011 Remaster", "bohemian rhapsody"},
		{"Yesterday (Remastered 2023)", "yesterday"},
		{"Hotel California [Remastered]", "hotel california"},
		{"Stairway to Heaven (Radio Edit)", "stairway to heaven"},
		{"Imagine - Live", "imagine"},
		{"Let It Be (Single Version)", "let it be"},
		{"Hey Jude - Remastered Version", "hey jude"},
		{"Take On Me (Official Music Video)", "take on me"},
		{"Take On Me [Official Audio]", "take on me"},
		{"Take On Me (Lyrics)", "take on me"},
		{"Take On Me (HD)", "take on me"},
		{"Come Together (2019 Mix)", "come together (2019 mix)"},
		{"   Extra   Spaces   ", "extra spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizeTrackName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsSameArtist(t *testing.T) {
	tests := []struct {
		name     string
		track1   track.Track
		track2   track.Track
		expected bool
	}{
		{
			name:     "Same artist",
			track1:   track.Track{Artist: "Queen"},
			track2:   track.Track{Artist: "Queen"},
			expected: true,
		},
		{
			name:     "Same artist - case insensitive",
			track1:   track.Track{Artist: "Queen"},
			track2:   track.Track{Artist: "queen"},
			expected: true,
		},
		{
			name:     "Different artists",
			track1:   track.Track{Artist: "The Beatles"},
			track2:   track.Track{Artist: "Paul McCartney"},
			expected: false,
		},
		{
			name:     "Empty artist",
			track1:   track.Track{},
			track2:   track.Track{Artist: "Queen"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSameArtist(tt.track1, tt.track2)
			assert.Equal(t, tt.expected, result)
		})
	}
}
