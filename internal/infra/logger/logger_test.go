package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLogger_FileIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Output: "/var/log/voicebox.log"}, &buf, zerolog.InfoLevel)
	l.Info().Msg("hello")

	m := decodeLine(t, &buf)
	assert.Equal(t, "hello", m["message"])
	assert.NotContains(t, m, "caller")
}

func TestNewLogger_DebugAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Output: "/var/log/voicebox.log"}, &buf, zerolog.DebugLevel)
	l.Debug().Msg("hello")

	m := decodeLine(t, &buf)
	assert.Contains(t, m["caller"], "logger/logger_test.go")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Output: "stdout"}, &buf, zerolog.InfoLevel)
	l.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestInit_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "voicebox.log")
	err := Init(Config{Output: path, File: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}
