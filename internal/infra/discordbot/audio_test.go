package discordbot

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpegArgs(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		cfg       AudioConfig
		contains  []string
		reconnect bool
	}{
		{
			name:      "network stream",
			input:     "https://rr1.googlevideo.com/videoplayback",
			cfg:       AudioConfig{Bitrate: 96, Volume: 0.5},
			contains:  []string{"-vn", "96k", "volume=0.50", "ogg", "pipe:1"},
			reconnect: true,
		},
		{
			name:     "local file at unity volume",
			input:    "/tmp/song.webm",
			cfg:      AudioConfig{Bitrate: 128, Volume: 1},
			contains: []string{"-vn", "128k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := ffmpegArgs(tt.input, tt.cfg)
			joined := strings.Join(args, " ")

			for _, want := range tt.contains {
				assert.Contains(t, joined, want)
			}
			assert.Equal(t, tt.reconnect, strings.Contains(joined, "-reconnect 1 -reconnect_streamed 1 -reconnect_delay_max 5"))
			assert.Equal(t, tt.cfg.Volume != 1, strings.Contains(joined, "volume="))
			assert.Equal(t, "pipe:1", args[len(args)-1])

			// Reconnect options must precede the input
			if tt.reconnect {
				assert.Less(t, strings.Index(joined, "-reconnect"), strings.Index(joined, "-i "))
			}
		})
	}
}

func TestFrameProvider(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(oggPage([]byte{0x01, 0x02}))

	p := newFrameProvider(&stream)

	p.paused.Store(true)
	frame, err := p.ProvideOpusFrame()
	require.NoError(t, err)
	assert.Nil(t, frame, "paused provider yields nothing")

	p.paused.Store(false)
	frame, err = p.ProvideOpusFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, frame)

	_, err = p.ProvideOpusFrame()
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, <-p.done, io.EOF)

	// Later calls never block on done
	p.Close()
	_, _ = p.ProvideOpusFrame()
}

func TestStderrTail(t *testing.T) {
	var tail stderrTail
	_, _ = tail.Write([]byte("first line\n"))
	_, _ = tail.Write([]byte(strings.Repeat("x", stderrTailSize)))
	_, _ = tail.Write([]byte("\nHTTP error 403 Forbidden\n"))

	assert.Equal(t, "HTTP error 403 Forbidden", tail.String())
	assert.LessOrEqual(t, len(tail.buf), stderrTailSize)
}
