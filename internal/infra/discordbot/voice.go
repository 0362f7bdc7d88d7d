package discordbot

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/domain/track"
)

const (
	movePollInterval = 100 * time.Millisecond
	moveTimeout      = 5 * time.Second
)

// voiceConn is the subset of voice.Conn used by a sink.
type voiceConn interface {
	Open(ctx context.Context, channelID snowflake.ID, selfMute, selfDeaf bool) error
	Close(ctx context.Context)
	ChannelID() *snowflake.ID
	SetOpusFrameProvider(provider voice.OpusFrameProvider)
	SetSpeaking(ctx context.Context, flags voice.SpeakingFlags) error
}

// voiceClient creates connections and moves the bot between channels.
type voiceClient interface {
	CreateConn(guildID snowflake.ID) voiceConn
	RemoveConn(guildID snowflake.ID)
	UpdateVoiceState(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, selfMute, selfDeaf bool) error
}

type botVoice struct {
	client *bot.Client
}

func (b botVoice) CreateConn(guildID snowflake.ID) voiceConn {
	return b.client.VoiceManager.CreateConn(guildID)
}

func (b botVoice) RemoveConn(guildID snowflake.ID) {
	b.client.VoiceManager.RemoveConn(guildID)
}

func (b botVoice) UpdateVoiceState(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, selfMute, selfDeaf bool) error {
	return b.client.UpdateVoiceState(ctx, guildID, channelID, selfMute, selfDeaf)
}

// ConnectorConfig represents voice connector configuration.
type ConnectorConfig struct {
	SelfDeaf bool
	Audio    AudioConfig
}

// Connector joins voice channels and hands out one Sink per guild.
// It implements playback.Connector; session IDs are guild IDs.
type Connector struct {
	voice       voiceClient
	config      ConnectorConfig
	moveTimeout time.Duration

	mu     sync.Mutex
	guilds map[snowflake.ID]*guildVoice
}

type guildVoice struct {
	mu   sync.Mutex // serializes join, move and teardown
	sink *Sink
}

// NewConnector creates a new connector for client.
func NewConnector(client *bot.Client, cfg ConnectorConfig) *Connector {
	return newConnector(botVoice{client: client}, cfg)
}

func newConnector(vc voiceClient, cfg ConnectorConfig) *Connector {
	if cfg.Audio.FFmpegPath == "" {
		cfg.Audio.FFmpegPath = "ffmpeg"
	}
	if cfg.Audio.Bitrate == 0 {
		cfg.Audio.Bitrate = 128
	}
	return &Connector{
		voice:       vc,
		config:      cfg,
		moveTimeout: moveTimeout,
		guilds:      make(map[snowflake.ID]*guildVoice),
	}
}

func (c *Connector) guild(id snowflake.ID) *guildVoice {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.guilds[id]
	if !ok {
		g = &guildVoice{}
		c.guilds[id] = g
	}
	return g
}

// Connect ensures the bot is connected to channelRef in guild sessionID.
// Not connected: join. Connected elsewhere: move. Stale: close and rejoin.
func (c *Connector) Connect(ctx context.Context, sessionID, channelRef string) (playback.Sink, error) {
	guildID, err := snowflake.Parse(sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid guild id %q", sessionID)
	}
	channelID, err := snowflake.Parse(channelRef)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid channel id %q", channelRef)
	}

	g := c.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sink == nil {
		g.sink = &Sink{
			guildID:   guildID,
			conn:      c.voice.CreateConn(guildID),
			connector: c,
		}
	}
	s := g.sink

	current := s.conn.ChannelID()
	switch {
	case s.joined && current != nil && *current == channelID:
		return s, nil
	case s.joined && current != nil:
		err := c.move(ctx, s, channelID)
		if err == nil {
			return s, nil
		}
		zlog.Warn().Msgf("discord: move failed, rejoining: guild=%s channel=%s error=%v", guildID, channelID, err)
		c.closeConn(ctx, s)
	case s.joined || current != nil:
		zlog.Info().Msgf("discord: stale voice connection, reconnecting: guild=%s", guildID)
		c.closeConn(ctx, s)
	}

	if err := s.conn.Open(ctx, channelID, false, c.config.SelfDeaf); err != nil {
		c.closeConn(ctx, s)
		return nil, errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}
	s.markJoined()
	zlog.Info().Msgf("discord: joined voice channel: guild=%s channel=%s", guildID, channelID)
	return s, nil
}

// move asks the gateway to move the bot and waits until the connection follows.
func (c *Connector) move(ctx context.Context, s *Sink, channelID snowflake.ID) error {
	ctx, cancel := context.WithTimeout(ctx, c.moveTimeout)
	defer cancel()

	if err := c.voice.UpdateVoiceState(ctx, s.guildID, &channelID, false, c.config.SelfDeaf); err != nil {
		return errors.Wrap(err, "failed to update voice state")
	}

	ticker := time.NewTicker(movePollInterval)
	defer ticker.Stop()
	for {
		if current := s.conn.ChannelID(); current != nil && *current == channelID {
			zlog.Info().Msgf("discord: moved voice channel: guild=%s channel=%s", s.guildID, channelID)
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "timed out waiting for move")
		case <-ticker.C:
		}
	}
}

// closeConn closes the connection while the guild lock is held.
// The resulting voice state update is expected and not reported as a leave.
func (c *Connector) closeConn(ctx context.Context, s *Sink) {
	s.mu.Lock()
	if s.joined {
		s.expectedLeaves++
	}
	s.joined = false
	s.mu.Unlock()
	s.conn.Close(ctx)
}

// HandleVoiceStateUpdate processes the bot's own voice state in a guild and
// reports whether the bot was disconnected by someone else.
func (c *Connector) HandleVoiceStateUpdate(guildID snowflake.ID, channelID *snowflake.ID) bool {
	c.mu.Lock()
	g, ok := c.guilds[guildID]
	c.mu.Unlock()
	if !ok {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sink
	if s == nil || channelID != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expectedLeaves > 0 {
		s.expectedLeaves--
		return false
	}
	if !s.joined {
		return false
	}
	s.joined = false
	return true
}

func (c *Connector) release(ctx context.Context, s *Sink) {
	c.mu.Lock()
	g, ok := c.guilds[s.guildID]
	c.mu.Unlock()
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sink != s {
		return
	}
	c.closeConn(ctx, s)
	c.voice.RemoveConn(s.guildID)
	g.sink = nil

	c.mu.Lock()
	delete(c.guilds, s.guildID)
	c.mu.Unlock()
}

// Sink streams audio into one guild's voice connection.
type Sink struct {
	guildID   snowflake.ID
	conn      voiceConn
	connector *Connector

	mu             sync.Mutex
	joined         bool
	expectedLeaves int
	current        *stream
}

var _ playback.Sink = (*Sink)(nil)

func (s *Sink) markJoined() {
	s.mu.Lock()
	s.joined = true
	s.mu.Unlock()
}

// Play starts streaming qt. onFinished runs once the stream ends.
func (s *Sink) Play(ctx context.Context, qt *track.QueuedTrack, onFinished func(error)) error {
	if qt.Track.StreamURL == "" {
		return errors.New("track has no stream url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.joined {
		return playback.ErrNotConnected
	}
	if s.current != nil {
		s.current.requestStop()
	}

	st, err := startStream(ctx, qt.Track.StreamURL, s.connector.config.Audio)
	if err != nil {
		return err
	}
	s.current = st
	s.conn.SetOpusFrameProvider(st.provider)
	if err := s.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone); err != nil {
		zlog.Debug().Msgf("discord: failed to set speaking: guild=%s error=%v", s.guildID, err)
	}

	go func() {
		err := st.wait()
		s.streamEnded(st)
		onFinished(err)
	}()
	return nil
}

func (s *Sink) streamEnded(st *stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != st {
		return
	}
	s.current = nil
	s.conn.SetOpusFrameProvider(nil)
	_ = s.conn.SetSpeaking(context.Background(), 0)
}

// Stop ends the current stream, if any.
func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.requestStop()
	}
	return nil
}

// Pause silences the current stream.
func (s *Sink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return playback.ErrNothingPlaying
	}
	s.current.provider.paused.Store(true)
	return nil
}

// Resume continues a paused stream.
func (s *Sink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return playback.ErrNothingPlaying
	}
	s.current.provider.paused.Store(false)
	return nil
}

// Disconnect stops streaming and leaves the voice channel.
func (s *Sink) Disconnect(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.connector.release(ctx, s)
	zlog.Info().Msgf("discord: left voice channel: guild=%s", s.guildID)
	return nil
}

func (s *Sink) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined && s.conn.ChannelID() != nil
}

func (s *Sink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && !s.current.provider.paused.Load()
}

func (s *Sink) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.provider.paused.Load()
}
