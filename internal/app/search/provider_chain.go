package search

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNoResults is returned when no provider found anything.
var ErrNoResults = errors.New("no search results")

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain tries providers in order and returns the first non-empty result.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Search returns the candidates of the first provider that finds any.
// Provider errors are logged and the next provider is tried.
func (c *ProviderChain) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	var lastErr error
	for i, pm := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		zlog.Debug().Msgf("trying search provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.Search(ctx, query, limit)
		if err != nil {
			zlog.Warn().Msgf("search provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			lastErr = err
			continue
		}
		if len(candidates) == 0 {
			zlog.Debug().Msgf("search provider returned no candidates: provider=%s", pm.DisplayName)
			continue
		}

		for j := range candidates {
			if candidates[j].Source == "" {
				candidates[j].Source = pm.DisplayName
			}
		}
		zlog.Info().Msgf("search provider returned candidates: provider=%s query=%q count=%d",
			pm.DisplayName, query, len(candidates))
		return candidates, nil
	}

	if lastErr != nil {
		return nil, errors.Mark(errors.Wrap(lastErr, "all search providers failed"), ErrNoResults)
	}
	return nil, ErrNoResults
}

// Providers returns the providers in the chain.
func (c *ProviderChain) Providers() []ProviderWithMetadata {
	return c.providers
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
