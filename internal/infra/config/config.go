// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Discord   DiscordConfig           `yaml:"discord"`
	Admin     AdminConfig             `yaml:"admin"`
	Playback  PlaybackConfig          `yaml:"playback"`
	Audio     AudioConfig             `yaml:"audio"`
	Resolver  ResolverConfig          `yaml:"resolver"`
	RateLimit RateLimitConfig         `yaml:"rate_limit"`
	Filters   map[string]FilterConfig `yaml:"filters"`
	Messages  MessagesConfig          `yaml:"messages"`
	Spotify   SpotifyConfig           `yaml:"spotify"`
	LastFM    LastFMConfig            `yaml:"lastfm"`
}

// ServerConfig represents RPC server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// DiscordConfig represents Discord bot configuration.
type DiscordConfig struct {
	Token          string        `yaml:"token" validate:"required"`
	GuildIDs       []string      `yaml:"guild_ids" validate:"dive,numeric"` // Register commands per guild; global when empty
	SelfDeaf       *bool         `yaml:"self_deaf" default:"true"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"15s" validate:"gt=0"`
}

// IsSelfDeaf reports whether the bot joins voice channels deafened.
func (d DiscordConfig) IsSelfDeaf() bool {
	return d.SelfDeaf == nil || *d.SelfDeaf
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlaybackConfig represents per-session playback configuration.
type PlaybackConfig struct {
	InactivityTimeout time.Duration `yaml:"inactivity_timeout" default:"300s" validate:"gt=0"`
	QueueViewLimit    int           `yaml:"queue_view_limit" default:"10" validate:"gte=1,lte=25"`
	MaxSessions       int           `yaml:"max_sessions" default:"1000" validate:"gte=1"`
	EventBuffer       int           `yaml:"event_buffer" default:"256" validate:"gte=1"`
	MailboxSize       int           `yaml:"mailbox_size" default:"64" validate:"gte=1"`
}

// AudioConfig represents the audio pipeline configuration.
type AudioConfig struct {
	FFmpegPath string  `yaml:"ffmpeg_path" default:"ffmpeg"`
	Bitrate    int     `yaml:"bitrate" default:"128" validate:"gte=8,lte=512"` // Opus bitrate in kbit/s
	Volume     float64 `yaml:"volume" default:"0.5" validate:"gt=0,lte=2"`
}

// ResolverConfig represents media resolution configuration.
type ResolverConfig struct {
	Timeout   time.Duration    `yaml:"timeout" default:"30s" validate:"gt=0"`
	YtDlp     YtDlpConfig      `yaml:"ytdlp"`
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// YtDlpConfig represents yt-dlp configuration.
type YtDlpConfig struct {
	Path        string `yaml:"path"` // Resolved from PATH when empty
	Format      string `yaml:"format" default:"bestaudio/best"`
	CookiesFile string `yaml:"cookies_file" default:"cookies.txt"` // Used only when the file exists
	Proxy       string `yaml:"proxy"`
}

// ProviderConfig represents a single search provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=youtube ytmusic ytdlp"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// RateLimitConfig represents per-requester rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" default:"20" validate:"gt=0"`
	Burst             int     `yaml:"burst" default:"5" validate:"gte=1"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	DefaultError          string `yaml:"default_error" default:"Something went wrong. Please try again."`
	NoVoiceChannel        string `yaml:"no_voice_channel" default:"You need to be in a voice channel first."`
	NotConnected          string `yaml:"not_connected" default:"I'm not connected to a voice channel."`
	NothingPlaying        string `yaml:"nothing_playing" default:"Nothing is playing."`
	NotPaused             string `yaml:"not_paused" default:"Playback is not paused."`
	QueueEmpty            string `yaml:"queue_empty" default:"The queue is empty."`
	ResolutionFailed      string `yaml:"resolution_failed" default:"Could not find anything playable for that request."`
	ConnectFailed         string `yaml:"connect_failed" default:"Could not join your voice channel."`
	RateLimited           string `yaml:"rate_limited" default:"You're sending requests too quickly. Slow down a little."`
	RegistryFull          string `yaml:"registry_full" default:"Too many active sessions right now. Try again later."`
	UserPending           string `yaml:"user_pending" default:"You already have too many tracks waiting in the queue."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"That track is already playing or queued."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"That track is too long or too short."`
	DurationUnknown       string `yaml:"duration_unknown" default:"Tracks without a known length are not allowed."`
	Blocked               string `yaml:"blocked" default:"You are not allowed to queue tracks."`
	Skipped               string `yaml:"skipped" default:"⏭️ Skipped."`
	Stopped               string `yaml:"stopped" default:"⏹️ Stopped and disconnected."`
	Paused                string `yaml:"paused" default:"⏸️ Paused."`
	Resumed               string `yaml:"resumed" default:"▶️ Resumed."`
}

// SpotifyConfig represents Spotify API configuration.
// Spotify links are rewritten into search queries only when both credentials are set.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Enabled reports whether Spotify credentials are configured.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// LastFMConfig represents Last.fm configuration.
type LastFMConfig struct {
	APIKey       string `yaml:"api_key"`
	SimilarCount int    `yaml:"similar_count" default:"3" validate:"gte=0,lte=10"`
}

// Enabled reports whether a Last.fm API key is configured.
func (l LastFMConfig) Enabled() bool {
	return l.APIKey != ""
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if len(cfg.Resolver.Providers) == 0 {
		cfg.Resolver.Providers = DefaultProviders()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// DefaultProviders returns the search provider chain used when none is configured.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Type: "youtube", DisplayName: "YouTube"},
		{Type: "ytdlp", DisplayName: "yt-dlp"},
	}
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("YOUTUBE_PROXY"); v != "" {
		c.Resolver.YtDlp.Proxy = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "no_voice_channel":
		return c.Messages.NoVoiceChannel
	case "not_connected":
		return c.Messages.NotConnected
	case "nothing_playing":
		return c.Messages.NothingPlaying
	case "not_paused":
		return c.Messages.NotPaused
	case "queue_empty":
		return c.Messages.QueueEmpty
	case "resolution_failed":
		return c.Messages.ResolutionFailed
	case "connect_failed":
		return c.Messages.ConnectFailed
	case "rate_limited":
		return c.Messages.RateLimited
	case "registry_full":
		return c.Messages.RegistryFull
	case "user_pending":
		return c.Messages.UserPending
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "duration_unknown":
		return c.Messages.DurationUnknown
	case "blocked":
		return c.Messages.Blocked
	case "skipped":
		return c.Messages.Skipped
	case "stopped":
		return c.Messages.Stopped
	case "paused":
		return c.Messages.Paused
	case "resumed":
		return c.Messages.Resumed
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		return errors.New("spotify client_id and client_secret must be set together")
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// EnabledFilters returns the settings of every enabled filter keyed by name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	result := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if f.Enabled {
			result[name] = f.Settings
		}
	}
	return result
}
