package filter

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/voicebox/internal/domain/listener"
	"github.com/osa030/voicebox/internal/domain/track"
)

// BlockedConfig represents the configuration for BlockedRequesterFilter.
type BlockedConfig struct {
	RequesterIDs []string `yaml:"requester_ids" mapstructure:"requester_ids"`
}

// BlockedRequesterFilter rejects requests from blocked requesters.
type BlockedRequesterFilter struct {
	blocked map[string]struct{}
}

func (f *BlockedRequesterFilter) Name() string {
	return "blocked_requester_filter"
}

func (f *BlockedRequesterFilter) Description() string {
	return "Checks if the requester is blocked from queueing tracks"
}

func (f *BlockedRequesterFilter) ReturnCodes() []string {
	return []string{"blocked"}
}

func (f *BlockedRequesterFilter) ValidateConfig(settings map[string]any) error {
	var config BlockedConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.blocked = make(map[string]struct{}, len(config.RequesterIDs))
	for _, id := range config.RequesterIDs {
		if id == "" {
			return errors.New("requester_ids must not contain empty IDs")
		}
		f.blocked[id] = struct{}{}
	}
	return nil
}

func (f *BlockedRequesterFilter) AppliesTo(requesterType track.RequesterType) bool {
	// System-generated requests bypass this check
	return requesterType == track.RequesterTypeUser
}

func (f *BlockedRequesterFilter) Check(ctx context.Context, req TrackRequest, t track.Track, l *listener.Listener) Result {
	if _, ok := f.blocked[req.RequesterID]; ok {
		return Reject("blocked")
	}
	return Accept()
}

func init() {
	Register("blocked_requester_filter", func() Filter {
		return &BlockedRequesterFilter{}
	})
}
