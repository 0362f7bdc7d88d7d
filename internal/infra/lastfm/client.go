// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	defaultBaseURL  = "https://ws.audioscrobbler.com/2.0/"
	maxCacheEntries = 512
	maxSimilar      = 100
)

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu      sync.RWMutex
	similar map[similarKey][]SimilarTrack
}

type similarKey struct {
	artist, track string
	limit         int
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// SimilarTrack is a track Last.fm considers similar to another.
type SimilarTrack struct {
	Name   string
	Artist string
	URL    string
}

type similarResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string `json:"name"`
			URL    string `json:"url"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

// APIError is an error payload returned by the Last.fm API.
type APIError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("last.fm API error %d: %s", e.Code, e.Message)
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		similar:    make(map[similarKey][]SimilarTrack),
	}, nil
}

// GetSimilarTracks returns up to limit tracks similar to the given one.
// Results are cached per artist, track and limit.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	switch {
	case limit <= 0:
		limit = 20
	case limit > maxSimilar:
		limit = maxSimilar
	}

	key := similarKey{artist: strings.ToLower(artistName), track: strings.ToLower(trackName), limit: limit}
	c.mu.RLock()
	cached, ok := c.similar[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocorrect", "1")

	var resp similarResponse
	if err := c.call(ctx, "track.getSimilar", params, &resp); err != nil {
		return nil, err
	}

	tracks := make([]SimilarTrack, 0, len(resp.SimilarTracks.Track))
	for _, t := range resp.SimilarTracks.Track {
		tracks = append(tracks, SimilarTrack{
			Name:   t.Name,
			Artist: t.Artist.Name,
			URL:    t.URL,
		})
	}

	c.mu.Lock()
	if len(c.similar) >= maxCacheEntries {
		c.similar = make(map[similarKey][]SimilarTrack)
	}
	c.similar[key] = tracks
	c.mu.Unlock()

	zlog.Debug().Msgf("lastfm: similar tracks: artist=%s track=%s count=%d", artistName, trackName, len(tracks))
	return tracks, nil
}

// call invokes an API method and decodes the JSON result into out.
// Last.fm reports some errors with status 200, so the error payload is
// checked before the status code.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to call %s", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
		return &apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

var (
	bracketPattern = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	topicSuffix    = regexp.MustCompile(`(?i)\s*-\s*topic$`)
	vevoSuffix     = regexp.MustCompile(`(?i)vevo$`)
)

// GuessArtistTitle splits a video title such as "Artist - Title (Official Video)"
// into artist and track name, falling back to the uploader as artist.
func GuessArtistTitle(title, uploader string) (artist, name string) {
	clean := strings.TrimSpace(bracketPattern.ReplaceAllString(title, ""))
	if parts := strings.SplitN(clean, " - ", 2); len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	artist = topicSuffix.ReplaceAllString(strings.TrimSpace(uploader), "")
	artist = vevoSuffix.ReplaceAllString(artist, "")
	return strings.TrimSpace(artist), clean
}
