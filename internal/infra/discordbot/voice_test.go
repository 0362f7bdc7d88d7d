package discordbot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/domain/track"
)

type fakeConn struct {
	mu        sync.Mutex
	channelID *snowflake.ID
	opens     []snowflake.ID
	closes    int
	openErr   error
	selfDeaf  bool
}

func (c *fakeConn) Open(_ context.Context, channelID snowflake.ID, _, selfDeaf bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens = append(c.opens, channelID)
	if c.openErr != nil {
		return c.openErr
	}
	c.channelID = &channelID
	c.selfDeaf = selfDeaf
	return nil
}

func (c *fakeConn) Close(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.channelID = nil
}

func (c *fakeConn) ChannelID() *snowflake.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConn) setChannel(id *snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channelID = id
}

func (c *fakeConn) SetOpusFrameProvider(voice.OpusFrameProvider) {}

func (c *fakeConn) SetSpeaking(context.Context, voice.SpeakingFlags) error { return nil }

type fakeVoiceClient struct {
	conn    *fakeConn
	moves   []snowflake.ID
	follow  bool // the connection follows a move
	removed int
	created int
}

func (v *fakeVoiceClient) CreateConn(snowflake.ID) voiceConn {
	v.created++
	return v.conn
}

func (v *fakeVoiceClient) RemoveConn(snowflake.ID) {
	v.removed++
}

func (v *fakeVoiceClient) UpdateVoiceState(_ context.Context, _ snowflake.ID, channelID *snowflake.ID, _, _ bool) error {
	v.moves = append(v.moves, *channelID)
	if v.follow {
		v.conn.setChannel(channelID)
	}
	return nil
}

const (
	testGuild    = "100000000000000001"
	testChannel1 = "200000000000000001"
	testChannel2 = "200000000000000002"
)

func newTestConnector(follow bool) (*Connector, *fakeVoiceClient) {
	vc := &fakeVoiceClient{conn: &fakeConn{}, follow: follow}
	return newConnector(vc, ConnectorConfig{SelfDeaf: true}), vc
}

func TestConnector_Join(t *testing.T) {
	c, vc := newTestConnector(true)

	sink, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)
	assert.True(t, sink.IsConnected())
	assert.True(t, vc.conn.selfDeaf)

	// Same channel is a no-op returning the same sink
	again, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)
	assert.Same(t, sink, again)
	assert.Len(t, vc.conn.opens, 1)
	assert.Equal(t, 1, vc.created)
}

func TestConnector_Move(t *testing.T) {
	c, vc := newTestConnector(true)

	sink, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)

	moved, err := c.Connect(context.Background(), testGuild, testChannel2)
	require.NoError(t, err)
	assert.Same(t, sink, moved)

	require.Len(t, vc.moves, 1)
	assert.Equal(t, testChannel2, vc.moves[0].String())
	assert.Len(t, vc.conn.opens, 1, "a move does not reopen the connection")
	assert.Equal(t, testChannel2, vc.conn.ChannelID().String())
}

func TestConnector_MoveFallsBackToRejoin(t *testing.T) {
	c, vc := newTestConnector(false)

	_, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)

	c.moveTimeout = 3 * movePollInterval
	_, err = c.Connect(context.Background(), testGuild, testChannel2)
	require.NoError(t, err)

	assert.Len(t, vc.moves, 1)
	assert.Equal(t, 1, vc.conn.closes)
	require.Len(t, vc.conn.opens, 2)
	assert.Equal(t, testChannel2, vc.conn.opens[1].String())

	// The close was ours, so the resulting voice state update is not a leave
	guildID := snowflake.MustParse(testGuild)
	assert.False(t, c.HandleVoiceStateUpdate(guildID, nil))
}

func TestConnector_StaleReconnect(t *testing.T) {
	c, vc := newTestConnector(true)

	_, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)

	// Connection dropped without a voice state update
	vc.conn.setChannel(nil)

	sink, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)
	assert.True(t, sink.IsConnected())
	assert.Equal(t, 1, vc.conn.closes)
	assert.Len(t, vc.conn.opens, 2)
}

func TestConnector_ConnectErrors(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		channel   string
		openErr   error
		errMsg    string
	}{
		{name: "invalid guild", sessionID: "guild", channel: testChannel1, errMsg: "invalid guild id"},
		{name: "invalid channel", sessionID: testGuild, channel: "voice", errMsg: "invalid channel id"},
		{name: "open fails", sessionID: testGuild, channel: testChannel1, openErr: errors.New("missing permissions"), errMsg: "failed to join"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, vc := newTestConnector(true)
			vc.conn.openErr = tt.openErr

			sink, err := c.Connect(context.Background(), tt.sessionID, tt.channel)
			require.Error(t, err)
			assert.Nil(t, sink)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConnector_HandleVoiceStateUpdate(t *testing.T) {
	guildID := snowflake.MustParse(testGuild)
	channelID := snowflake.MustParse(testChannel1)

	t.Run("unknown guild", func(t *testing.T) {
		c, _ := newTestConnector(true)
		assert.False(t, c.HandleVoiceStateUpdate(guildID, nil))
	})

	t.Run("still connected", func(t *testing.T) {
		c, _ := newTestConnector(true)
		_, err := c.Connect(context.Background(), testGuild, testChannel1)
		require.NoError(t, err)
		assert.False(t, c.HandleVoiceStateUpdate(guildID, &channelID))
	})

	t.Run("kicked", func(t *testing.T) {
		c, vc := newTestConnector(true)
		sink, err := c.Connect(context.Background(), testGuild, testChannel1)
		require.NoError(t, err)

		vc.conn.setChannel(nil)
		assert.True(t, c.HandleVoiceStateUpdate(guildID, nil))
		assert.False(t, sink.IsConnected())
		assert.False(t, c.HandleVoiceStateUpdate(guildID, nil), "reported once")
	})

	t.Run("own disconnect", func(t *testing.T) {
		c, vc := newTestConnector(true)
		sink, err := c.Connect(context.Background(), testGuild, testChannel1)
		require.NoError(t, err)

		require.NoError(t, sink.Disconnect(context.Background()))
		assert.Equal(t, 1, vc.removed)
		assert.False(t, c.HandleVoiceStateUpdate(guildID, nil))
	})
}

func TestSink_NotPlaying(t *testing.T) {
	c, _ := newTestConnector(true)
	sink, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)

	assert.False(t, sink.IsPlaying())
	assert.False(t, sink.IsPaused())
	assert.ErrorIs(t, sink.Pause(), playback.ErrNothingPlaying)
	assert.ErrorIs(t, sink.Resume(), playback.ErrNothingPlaying)
	assert.NoError(t, sink.Stop())

	err = sink.Play(context.Background(), &track.QueuedTrack{Track: track.Track{Title: "no stream"}}, func(error) {})
	assert.Error(t, err)
}

func TestSink_PlayAfterDisconnect(t *testing.T) {
	c, _ := newTestConnector(true)
	sink, err := c.Connect(context.Background(), testGuild, testChannel1)
	require.NoError(t, err)
	require.NoError(t, sink.Disconnect(context.Background()))

	qt := &track.QueuedTrack{Track: track.Track{Title: "a", StreamURL: "https://example.com/a"}, AddedAt: time.Now()}
	err = sink.Play(context.Background(), qt, func(error) {})
	assert.ErrorIs(t, err, playback.ErrNotConnected)
}
