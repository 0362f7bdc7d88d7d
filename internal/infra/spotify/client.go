// Package spotify turns Spotify links into search text.
//
// Spotify streams cannot be played directly; a link is rewritten into
// "artist title" and resolved through the regular search providers.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// LinkKind is the kind of entity a Spotify link points to.
type LinkKind string

const (
	KindTrack    LinkKind = "track"
	KindAlbum    LinkKind = "album"
	KindPlaylist LinkKind = "playlist"
)

// ErrEmptyCollection is returned for albums and playlists without playable tracks.
var ErrEmptyCollection = errors.New("spotify collection has no tracks")

// api is the subset of the Spotify Web API used here.
type api interface {
	GetTrack(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.FullTrack, error)
	GetAlbumTracks(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.SimpleTrackPage, error)
	GetPlaylistItems(ctx context.Context, id spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
}

// Client is a Spotify API client.
type Client struct {
	client     api
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client using the client credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	// Validate credentials up front; the HTTP client refreshes on its own.
	if _, err := creds.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to get spotify token")
	}

	return newClient(spotify.New(creds.Client(context.Background())), cfg.Market), nil
}

func newClient(c api, market string) *Client {
	if market == "" {
		market = "US"
	}
	return &Client{
		client:     c,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// ParseLink extracts the kind and ID from a Spotify URL or URI.
func ParseLink(input string) (LinkKind, string, bool) {
	input = strings.TrimSpace(input)

	// spotify:track:ID
	if strings.HasPrefix(input, "spotify:") {
		parts := strings.Split(input, ":")
		if len(parts) == 3 {
			if kind, ok := parseKind(parts[1]); ok && parts[2] != "" {
				return kind, parts[2], true
			}
		}
		return "", "", false
	}

	// https://open.spotify.com/track/ID or https://open.spotify.com/intl-XX/track/ID
	if !strings.Contains(input, "open.spotify.com/") {
		return "", "", false
	}
	path := strings.SplitN(input, "open.spotify.com/", 2)[1]
	path = strings.SplitN(path, "?", 2)[0]
	path = strings.SplitN(path, "#", 2)[0]
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) != 2 || segments[1] == "" {
		return "", "", false
	}
	kind, ok := parseKind(segments[0])
	if !ok {
		return "", "", false
	}
	return kind, segments[1], true
}

// IsLink reports whether input is a supported Spotify link.
func IsLink(input string) bool {
	_, _, ok := ParseLink(input)
	return ok
}

// IsLink reports whether input is a supported Spotify link.
func (c *Client) IsLink(input string) bool {
	return IsLink(input)
}

func parseKind(s string) (LinkKind, bool) {
	switch LinkKind(s) {
	case KindTrack, KindAlbum, KindPlaylist:
		return LinkKind(s), true
	}
	return "", false
}

// SearchText returns "artist title" for a Spotify link. Albums and playlists
// yield their first track.
func (c *Client) SearchText(ctx context.Context, link string) (string, error) {
	kind, id, ok := ParseLink(link)
	if !ok {
		return "", errors.Newf("not a spotify link: %s", link)
	}

	switch kind {
	case KindTrack:
		var t *spotify.FullTrack
		err := c.retry(func() error {
			r, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
			t = r
			return err
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to get track")
		}
		return searchText(t.Artists, t.Name), nil

	case KindAlbum:
		var page *spotify.SimpleTrackPage
		err := c.retry(func() error {
			p, err := c.client.GetAlbumTracks(ctx, spotify.ID(id), spotify.Limit(1), spotify.Market(c.market))
			page = p
			return err
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to get album tracks")
		}
		if len(page.Tracks) == 0 {
			return "", ErrEmptyCollection
		}
		return searchText(page.Tracks[0].Artists, page.Tracks[0].Name), nil

	default:
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(10), spotify.Market(c.market))
			page = p
			return err
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to get playlist items")
		}
		// Episodes carry no track
		for _, item := range page.Items {
			if item.Track.Track != nil && item.Track.Track.Name != "" {
				return searchText(item.Track.Track.Artists, item.Track.Track.Name), nil
			}
		}
		return "", ErrEmptyCollection
	}
}

func searchText(artists []spotify.SimpleArtist, name string) string {
	if len(artists) == 0 {
		return name
	}
	return artists[0].Name + " " + name
}

// retry retries an operation with a linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
