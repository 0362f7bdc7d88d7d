package spotify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind LinkKind
		wantID   string
		wantOK   bool
	}{
		{
			name:     "track URI",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			wantKind: KindTrack,
			wantID:   "4uLU6hMCjMI75M1A2tKUQC",
			wantOK:   true,
		},
		{
			name:     "track URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			wantKind: KindTrack,
			wantID:   "4uLU6hMCjMI75M1A2tKUQC",
			wantOK:   true,
		},
		{
			name:     "localized album URL",
			input:    "https://open.spotify.com/intl-ja/album/1DFixLWuPkv3KT3TnV35m3",
			wantKind: KindAlbum,
			wantID:   "1DFixLWuPkv3KT3TnV35m3",
			wantOK:   true,
		},
		{
			name:     "playlist URL with trailing slash",
			input:    "http://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M/",
			wantKind: KindPlaylist,
			wantID:   "37i9dQZF1DXcBWIGoYBM5M",
			wantOK:   true,
		},
		{
			name:  "artist URL is not supported",
			input: "https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF",
		},
		{
			name:  "YouTube URL",
			input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:  "free text",
			input: "never gonna give you up",
		},
		{
			name:  "malformed URI",
			input: "spotify:track:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, ok := ParseLink(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantOK, IsLink(tt.input))
		})
	}
}

type fakeAPI struct {
	track    *spotify.FullTrack
	album    *spotify.SimpleTrackPage
	playlist *spotify.PlaylistItemPage
	err      error
	calls    int
}

func (f *fakeAPI) GetTrack(context.Context, spotify.ID, ...spotify.RequestOption) (*spotify.FullTrack, error) {
	f.calls++
	return f.track, f.err
}

func (f *fakeAPI) GetAlbumTracks(context.Context, spotify.ID, ...spotify.RequestOption) (*spotify.SimpleTrackPage, error) {
	f.calls++
	return f.album, f.err
}

func (f *fakeAPI) GetPlaylistItems(context.Context, spotify.ID, ...spotify.RequestOption) (*spotify.PlaylistItemPage, error) {
	f.calls++
	return f.playlist, f.err
}

func simpleTrack(artist, name string) spotify.SimpleTrack {
	return spotify.SimpleTrack{
		Name:    name,
		Artists: []spotify.SimpleArtist{{Name: artist}},
	}
}

func TestClient_SearchText(t *testing.T) {
	track := &spotify.FullTrack{SimpleTrack: simpleTrack("Rick Astley", "Never Gonna Give You Up")}
	album := &spotify.SimpleTrackPage{Tracks: []spotify.SimpleTrack{simpleTrack("Daft Punk", "One More Time")}}
	playlist := &spotify.PlaylistItemPage{Items: []spotify.PlaylistItem{
		{Track: spotify.PlaylistItemTrack{}},
		{Track: spotify.PlaylistItemTrack{Track: &spotify.FullTrack{SimpleTrack: simpleTrack("Queen", "Bohemian Rhapsody")}}},
	}}

	tests := []struct {
		name    string
		link    string
		api     *fakeAPI
		want    string
		wantErr error
	}{
		{
			name: "track",
			link: "https://open.spotify.com/track/abc",
			api:  &fakeAPI{track: track},
			want: "Rick Astley Never Gonna Give You Up",
		},
		{
			name: "album yields first track",
			link: "spotify:album:abc",
			api:  &fakeAPI{album: album},
			want: "Daft Punk One More Time",
		},
		{
			name: "playlist skips episodes",
			link: "https://open.spotify.com/playlist/abc",
			api:  &fakeAPI{playlist: playlist},
			want: "Queen Bohemian Rhapsody",
		},
		{
			name:    "empty album",
			link:    "spotify:album:abc",
			api:     &fakeAPI{album: &spotify.SimpleTrackPage{}},
			wantErr: ErrEmptyCollection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(tt.api, "")
			got, err := c.SearchText(context.Background(), tt.link)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SearchTextErrors(t *testing.T) {
	api := &fakeAPI{err: errors.New("404 not found")}
	c := newClient(api, "JP")
	c.retryDelay = 0

	_, err := c.SearchText(context.Background(), "spotify:track:abc")
	require.Error(t, err)
	assert.Equal(t, 1, api.calls, "non-retryable errors are not retried")

	api = &fakeAPI{err: errors.New("503 Service Unavailable")}
	c = newClient(api, "JP")
	c.retryDelay = 0
	_, err = c.SearchText(context.Background(), "spotify:track:abc")
	require.Error(t, err)
	assert.Equal(t, 3, api.calls)

	_, err = c.SearchText(context.Background(), "not a link")
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
