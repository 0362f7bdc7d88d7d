package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/domain/listener"
	"github.com/osa030/voicebox/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	Min           time.Duration `yaml:"min_duration" mapstructure:"min_duration" validate:"gte=0"`
	Max           time.Duration `yaml:"max_duration" mapstructure:"max_duration" validate:"gte=0"` // 0 means no upper limit
	RejectUnknown bool          `yaml:"reject_unknown" mapstructure:"reject_unknown"`
}

// DurationLimitFilter rejects tracks outside a length window.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks shorter than min_duration or longer than max_duration"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded", "duration_unknown"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	if config.Max > 0 && config.Min > config.Max {
		return errors.New("min_duration cannot be greater than max_duration")
	}
	f.config = &config
	zlog.Info().Msgf("duration limit filter config: min=%s max=%s reject_unknown=%v",
		config.Min, config.Max, config.RejectUnknown)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(requesterType track.RequesterType) bool {
	return requesterType == track.RequesterTypeUser
}

func (f *DurationLimitFilter) Check(ctx context.Context, req TrackRequest, t track.Track, l *listener.Listener) Result {
	if f.config == nil {
		return Accept()
	}

	// Live streams and some extractors report no duration
	if !t.HasDuration() {
		if f.config.RejectUnknown {
			return Reject("duration_unknown")
		}
		return Accept()
	}

	if t.Duration < f.config.Min || (f.config.Max > 0 && t.Duration > f.config.Max) {
		return Reject("duration_limit_exceeded")
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
