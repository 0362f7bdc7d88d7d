package search

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/infra/config"
)

// NewProviderChainFromConfig creates a provider chain from configuration.
func NewProviderChainFromConfig(providers []config.ProviderConfig, searcher MediaSearcher) (*ProviderChain, error) {
	if len(providers) == 0 {
		return nil, errors.New("no search providers configured")
	}

	var chain []ProviderWithMetadata
	for i, pcfg := range providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating search provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)
		switch pcfg.Type {
		case "youtube":
			provider, err = NewYouTubeProvider(pcfg.Settings)

		case "ytmusic":
			provider, err = NewYTMusicProvider(pcfg.Settings)

		case "ytdlp":
			if searcher == nil {
				return nil, errors.Newf("ytdlp provider requires a media extractor (provider index %d)", i)
			}
			provider, err = NewYtDlpProvider(searcher, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		displayName := pcfg.DisplayName
		if displayName == "" {
			displayName = pcfg.Type
		}
		chain = append(chain, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: displayName,
		})

		zlog.Info().Msgf("registered search provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, displayName)
	}

	return NewProviderChain(chain), nil
}
