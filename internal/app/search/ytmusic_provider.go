package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/raitonoberu/ytmusic"
)

type YTMusicProviderConfig struct {
	MaxResults int `yaml:"max_results" mapstructure:"max_results" default:"5" validate:"gte=1,lte=20"`
}

// YTMusicProvider searches YouTube Music tracks.
type YTMusicProvider struct {
	config *YTMusicProviderConfig
}

// NewYTMusicProvider creates a new YTMusicProvider.
func NewYTMusicProvider(settings map[string]any) (*YTMusicProvider, error) {
	var config YTMusicProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &YTMusicProvider{config: &config}, nil
}

// Search searches YouTube Music. The client has no context support, so a
// cancelled ctx only stops waiting for the result.
func (p *YTMusicProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	type result struct {
		tracks []Candidate
		err    error
	}
	n := clampLimit(limit, p.config.MaxResults)

	ch := make(chan result, 1)
	go func() {
		res, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			ch <- result{err: errors.Wrap(err, "ytmusic search failed")}
			return
		}
		candidates := make([]Candidate, 0, n)
		for _, t := range res.Tracks {
			if t.VideoID == "" {
				continue
			}
			artist := ""
			if len(t.Artists) > 0 {
				artist = t.Artists[0].Name
			}
			candidates = append(candidates, Candidate{
				URL:    ytmusicWatchURL + t.VideoID,
				Title:  t.Title,
				Artist: artist,
			})
			if len(candidates) >= n {
				break
			}
		}
		ch <- result{tracks: candidates}
	}()

	select {
	case r := <-ch:
		return r.tracks, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Name returns the provider name.
func (p *YTMusicProvider) Name() string {
	return "ytmusic"
}
