package search

import (
	"context"

	"github.com/osa030/voicebox/internal/infra/media"
)

// MediaSearcher runs searches through the media extractor.
type MediaSearcher interface {
	Search(ctx context.Context, query string, limit int, music bool) ([]media.Entry, error)
}

type YtDlpProviderConfig struct {
	MaxResults int  `yaml:"max_results" mapstructure:"max_results" default:"3" validate:"gte=1,lte=10"`
	Music      bool `yaml:"music" mapstructure:"music"` // Search YouTube Music instead of YouTube
}

// YtDlpProvider searches through yt-dlp. It is the slowest provider and is
// normally configured last.
type YtDlpProvider struct {
	searcher MediaSearcher
	config   *YtDlpProviderConfig
}

// NewYtDlpProvider creates a new YtDlpProvider.
func NewYtDlpProvider(searcher MediaSearcher, settings map[string]any) (*YtDlpProvider, error) {
	var config YtDlpProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &YtDlpProvider{searcher: searcher, config: &config}, nil
}

// Search searches through yt-dlp.
func (p *YtDlpProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	entries, err := p.searcher.Search(ctx, query, clampLimit(limit, p.config.MaxResults), p.config.Music)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, Candidate{
			URL:      e.URL,
			Title:    e.Title,
			Artist:   e.Uploader,
			Duration: e.Duration,
		})
	}
	return candidates, nil
}

// Name returns the provider name.
func (p *YtDlpProvider) Name() string {
	return "ytdlp"
}
