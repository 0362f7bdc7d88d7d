package discordbot

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// AudioConfig represents the ffmpeg pipeline configuration.
type AudioConfig struct {
	FFmpegPath string
	Bitrate    int     // kbit/s
	Volume     float64 // 1.0 is unchanged
}

var errProviderClosed = errors.New("frame provider closed")

// ffmpegArgs builds the arguments that transcode input into Ogg/Opus on stdout.
func ffmpegArgs(input string, cfg AudioConfig) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	args = append(args,
		"-i", input,
		"-vn",
		"-map", "0:a",
		"-c:a", "libopus",
		"-b:a", fmt.Sprintf("%dk", cfg.Bitrate),
		"-ar", "48000",
		"-ac", "2",
		"-frame_duration", "20",
	)
	if cfg.Volume > 0 && cfg.Volume != 1 {
		args = append(args, "-af", fmt.Sprintf("volume=%.2f", cfg.Volume))
	}
	return append(args, "-f", "ogg", "pipe:1")
}

// frameProvider feeds Opus packets to the voice connection.
type frameProvider struct {
	packets *oggReader
	paused  atomic.Bool

	once sync.Once
	done chan error // receives the reason reading stopped, exactly once
}

func newFrameProvider(r io.Reader) *frameProvider {
	return &frameProvider{
		packets: newOggReader(r),
		done:    make(chan error, 1),
	}
}

// ProvideOpusFrame implements voice.OpusFrameProvider.
// A paused provider yields no frames.
func (p *frameProvider) ProvideOpusFrame() ([]byte, error) {
	if p.paused.Load() {
		return nil, nil
	}
	frame, err := p.packets.ReadPacket()
	if err != nil {
		p.finish(err)
		return nil, io.EOF
	}
	return frame, nil
}

// Close implements voice.OpusFrameProvider.
func (p *frameProvider) Close() {
	p.finish(errProviderClosed)
}

func (p *frameProvider) finish(err error) {
	p.once.Do(func() {
		p.done <- err
	})
}

// stderrTail keeps the last bytes written by ffmpeg.
type stderrTail struct {
	mu  sync.Mutex
	buf []byte
}

const stderrTailSize = 2048

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTailSize {
		t.buf = t.buf[len(t.buf)-stderrTailSize:]
	}
	return len(p), nil
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := strings.Split(strings.TrimSpace(string(t.buf)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// stream is one running ffmpeg process.
type stream struct {
	cmd      *exec.Cmd
	provider *frameProvider
	stderr   *stderrTail
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
}

func startStream(ctx context.Context, url string, cfg AudioConfig) (*stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath, ffmpegArgs(url, cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to open ffmpeg stdout")
	}
	tail := &stderrTail{}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}

	return &stream{
		cmd:      cmd,
		provider: newFrameProvider(stdout),
		stderr:   tail,
		cancel:   cancel,
		stop:     make(chan struct{}),
	}, nil
}

// requestStop ends the stream early. The result reported by wait is nil.
func (s *stream) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// wait blocks until the stream ends and returns its failure, if any.
func (s *stream) wait() error {
	var readErr error
	select {
	case readErr = <-s.provider.done:
	case <-s.stop:
	}

	select {
	case <-s.stop:
		s.cancel()
		_ = s.cmd.Wait()
		return nil
	default:
	}

	if !errors.Is(readErr, io.EOF) {
		// ffmpeg may still be blocked writing to the pipe
		s.cancel()
	}
	waitErr := s.cmd.Wait()
	s.cancel()

	switch {
	case errors.Is(readErr, io.EOF) && waitErr == nil:
		return nil
	case waitErr != nil && !errors.Is(readErr, errProviderClosed):
		if tail := s.stderr.String(); tail != "" {
			return errors.Wrapf(waitErr, "ffmpeg: %s", tail)
		}
		return errors.Wrap(waitErr, "ffmpeg exited")
	default:
		zlog.Debug().Msgf("discord: stream ended: read_error=%v", readErr)
		return errors.Wrap(readErr, "audio stream interrupted")
	}
}
