package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
discord:
  token: "test-discord-token"
admin:
  token: "test-admin-token"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 300*time.Second, cfg.Playback.InactivityTimeout)
	assert.Equal(t, 10, cfg.Playback.QueueViewLimit)
	assert.Equal(t, 1000, cfg.Playback.MaxSessions)
	assert.Equal(t, 15*time.Second, cfg.Discord.ConnectTimeout)
	assert.True(t, cfg.Discord.IsSelfDeaf())
	assert.Equal(t, "bestaudio/best", cfg.Resolver.YtDlp.Format)
	assert.Equal(t, "cookies.txt", cfg.Resolver.YtDlp.CookiesFile)
	assert.Equal(t, DefaultProviders(), cfg.Resolver.Providers)
	assert.Equal(t, "ffmpeg", cfg.Audio.FFmpegPath)
	assert.Equal(t, float64(20), cfg.RateLimit.RequestsPerMinute)
	assert.False(t, cfg.Spotify.Enabled())
	assert.False(t, cfg.LastFM.Enabled())
	assert.Equal(t, "You need to be in a voice channel first.", cfg.Messages.NoVoiceChannel)
}

func TestParse_Overrides(t *testing.T) {
	yml := `
admin:
  token: "test-admin-token"
discord:
  token: "test-discord-token"
  self_deaf: false
  guild_ids: ["123456789012345678"]
playback:
  inactivity_timeout: 45s
  queue_view_limit: 5
resolver:
  providers:
    - type: ytmusic
      display_name: YouTube Music
filters:
  user_pending_filter:
    enabled: true
    settings:
      max_pending: 2
  duplicate_track_filter:
    enabled: false
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)

	assert.False(t, cfg.Discord.IsSelfDeaf())
	assert.Equal(t, []string{"123456789012345678"}, cfg.Discord.GuildIDs)
	assert.Equal(t, 45*time.Second, cfg.Playback.InactivityTimeout)
	assert.Equal(t, 5, cfg.Playback.QueueViewLimit)
	require.Len(t, cfg.Resolver.Providers, 1)
	assert.Equal(t, "ytmusic", cfg.Resolver.Providers[0].Type)

	assert.True(t, cfg.IsFilterEnabled("user_pending_filter"))
	assert.False(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown_filter"))

	enabled := cfg.EnabledFilters()
	require.Len(t, enabled, 1)
	assert.Equal(t, 2, enabled["user_pending_filter"]["max_pending"])
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-discord")
	t.Setenv("ADMIN_TOKEN", "env-admin")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("LASTFM_API_KEY", "env-lastfm")
	t.Setenv("YOUTUBE_PROXY", "socks5://127.0.0.1:1080")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-discord", cfg.Discord.Token)
	assert.Equal(t, "env-admin", cfg.Admin.Token)
	assert.True(t, cfg.Spotify.Enabled())
	assert.True(t, cfg.LastFM.Enabled())
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Resolver.YtDlp.Proxy)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "missing discord token",
			yaml:   "admin:\n  token: x\n",
			errMsg: "Token",
		},
		{
			name:   "missing admin token",
			yaml:   "discord:\n  token: x\n",
			errMsg: "Token",
		},
		{
			name:   "unknown provider type",
			yaml:   minimalYAML + "resolver:\n  providers:\n    - type: napster\n",
			errMsg: "Type",
		},
		{
			name:   "queue view limit too large",
			yaml:   minimalYAML + "playback:\n  queue_view_limit: 100\n",
			errMsg: "QueueViewLimit",
		},
		{
			name:   "non-numeric guild id",
			yaml:   "admin:\n  token: x\ndiscord:\n  token: x\n  guild_ids: [\"abc\"]\n",
			errMsg: "GuildIDs",
		},
		{
			name:   "invalid market length",
			yaml:   minimalYAML + "spotify:\n  client_id: a\n  client_secret: b\n  market: JAPAN\n",
			errMsg: "Market",
		},
		{
			name:   "spotify secret without id",
			yaml:   minimalYAML + "spotify:\n  client_secret: b\n",
			errMsg: "client_id and client_secret",
		},
		{
			name:   "malformed yaml",
			yaml:   "discord: [",
			errMsg: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err, "expected validation to fail")
			assert.Contains(t, err.Error(), tt.errMsg,
				"error message should mention the problematic field")
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-discord-token", cfg.Discord.Token)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_GetMessage(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	tests := []struct {
		code string
		want string
	}{
		{"nothing_playing", "Nothing is playing."},
		{"queue_empty", "The queue is empty."},
		{"no_voice_channel", "You need to be in a voice channel first."},
		{"duplicate_track", cfg.Messages.DuplicateTrack},
		{"not_a_code", cfg.Messages.DefaultError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.GetMessage(tt.code))
		})
	}
}
