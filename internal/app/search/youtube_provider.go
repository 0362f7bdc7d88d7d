package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ppalone/ytsearch"
)

type YouTubeProviderConfig struct {
	MaxResults int `yaml:"max_results" mapstructure:"max_results" default:"5" validate:"gte=1,lte=20"`
}

// YouTubeProvider searches YouTube videos.
type YouTubeProvider struct {
	client *ytsearch.Client
	config *YouTubeProviderConfig
}

// NewYouTubeProvider creates a new YouTubeProvider.
func NewYouTubeProvider(settings map[string]any) (*YouTubeProvider, error) {
	var config YouTubeProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &YouTubeProvider{
		client: ytsearch.NewClient(nil),
		config: &config,
	}, nil
}

// Search searches YouTube.
func (p *YouTubeProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	res, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "youtube search failed")
	}

	n := clampLimit(limit, p.config.MaxResults)
	candidates := make([]Candidate, 0, n)
	for _, r := range res.Results {
		if r.VideoID == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			URL:      youtubeWatchURL + r.VideoID,
			Title:    r.Title,
			Artist:   r.Channel,
			Duration: parseColonDuration(r.Duration),
		})
		if len(candidates) >= n {
			break
		}
	}
	return candidates, nil
}

// Name returns the provider name.
func (p *YouTubeProvider) Name() string {
	return "youtube"
}

// clampLimit returns the requested limit bounded by the configured maximum.
func clampLimit(limit, configured int) int {
	if limit <= 0 || limit > configured {
		return configured
	}
	return limit
}
