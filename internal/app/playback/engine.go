package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/session/state"
	"github.com/osa030/voicebox/internal/domain/track"
)

const (
	defaultMailboxSize       = 64
	defaultDisconnectTimeout = 10 * time.Second
)

// Config holds engine configuration.
type Config struct {
	MailboxSize       int             // Buffered operations before callers block
	DisconnectTimeout time.Duration   // Upper bound for Sink.Disconnect during teardown
	OnClosed          func(e *Engine) // Called on the engine goroutine after teardown
}

// EnqueueResult describes where an accepted track landed.
type EnqueueResult struct {
	Position int  // 1-based position in pending; 0 when it started immediately
	Started  bool // Track became current
}

// Status is a point-in-time view of an engine.
type Status struct {
	SessionID   string
	State       State
	Paused      bool
	Connected   bool
	ChannelRef  string
	Current     *track.QueuedTrack
	QueueLength int
	Listeners   int // Distinct requesters seen in this session
	TimerArmed  bool
	CreatedAt   time.Time
}

// Engine drives playback for one session.
//
// Every mutation runs on the engine goroutine, one operation at a time, in
// the order it was accepted. Sink completions are posted back as operations
// tagged with a generation so that late completions are ignored.
type Engine struct {
	id     string
	state  *state.Session
	timer  Timer
	events chan<- Event
	config Config

	ops    chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the engine goroutine
	sink       Sink
	playState  State
	paused     bool
	gen        uint64
	timerSeq   uint64
	timerArmed bool
	closed     bool
}

// NewEngine creates an engine and starts its goroutine.
// events may be nil; sends never block.
func NewEngine(sessionID string, timer Timer, events chan<- Event, config Config) *Engine {
	if config.MailboxSize <= 0 {
		config.MailboxSize = defaultMailboxSize
	}
	if config.DisconnectTimeout <= 0 {
		config.DisconnectTimeout = defaultDisconnectTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		id:        sessionID,
		state:     state.New(sessionID),
		timer:     timer,
		events:    events,
		config:    config,
		ops:       make(chan func(), config.MailboxSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		playState: StateIdle,
	}
	go e.run()
	return e
}

// ID returns the session ID.
func (e *Engine) ID() string {
	return e.id
}

// Session returns the session state. Callers must treat it as read-only.
func (e *Engine) Session() *state.Session {
	return e.state
}

// Done returns a channel that is closed after teardown.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Snapshot returns a read-only copy of the queue.
func (e *Engine) Snapshot(limit int) state.Snapshot {
	return e.state.Snapshot(limit)
}

// Closed reports whether teardown has started.
func (e *Engine) Closed() bool {
	return e.ctx.Err() != nil
}

// Attach hands a connected sink to the engine. Pending tracks start playing;
// an idle session arms its inactivity timer.
func (e *Engine) Attach(ctx context.Context, sink Sink, channelRef string) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		e.attach(sink, channelRef)
		if e.closed {
			return struct{}{}, ErrSessionClosed
		}
		return struct{}{}, nil
	})
	return err
}

// Enqueue appends a track. An idle, connected session starts it immediately.
// ErrSessionClosed is returned when the output turned out to be gone.
func (e *Engine) Enqueue(ctx context.Context, qt *track.QueuedTrack) (EnqueueResult, error) {
	return call(ctx, e, func() (EnqueueResult, error) {
		res := e.enqueue(qt)
		if e.closed {
			return EnqueueResult{}, ErrSessionClosed
		}
		return res, nil
	})
}

// Skip stops the current track. The sink's completion advances the queue.
func (e *Engine) Skip(ctx context.Context) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		return struct{}{}, e.skip()
	})
	return err
}

// Pause pauses the current track.
func (e *Engine) Pause(ctx context.Context) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		return struct{}{}, e.pause()
	})
	return err
}

// Resume resumes a paused track.
func (e *Engine) Resume(ctx context.Context) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		return struct{}{}, e.resume()
	})
	return err
}

// Stop tears the session down. It is safe to call more than once.
func (e *Engine) Stop(ctx context.Context, reason string) error {
	_, err := call(ctx, e, func() (struct{}, error) {
		e.fullStop(reason)
		return struct{}{}, nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// StopIfUnused tears the session down only when no output was ever attached
// and nothing is queued. It reports whether the session was closed.
func (e *Engine) StopIfUnused(ctx context.Context, reason string) (bool, error) {
	stopped, err := call(ctx, e, func() (bool, error) {
		if e.sink != nil || e.state.PendingLen() > 0 {
			return false, nil
		}
		if _, ok := e.state.Current(); ok {
			return false, nil
		}
		e.fullStop(reason)
		return true, nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return true, nil
	}
	return stopped, err
}

// StopIfDisconnected tears the session down when its attached output reports
// that it lost the voice connection. It reports whether the session was closed.
func (e *Engine) StopIfDisconnected(ctx context.Context, reason string) (bool, error) {
	stopped, err := call(ctx, e, func() (bool, error) {
		if e.sink == nil || e.sink.IsConnected() {
			return false, nil
		}
		e.fullStop(reason)
		return true, nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return true, nil
	}
	return stopped, err
}

// Status returns the engine status.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	return call(ctx, e, func() (Status, error) {
		cur, _ := e.state.Current()
		return Status{
			SessionID:   e.id,
			State:       e.playState,
			Paused:      e.paused,
			Connected:   e.state.IsConnected(),
			ChannelRef:  e.state.ChannelRef(),
			Current:     cur,
			QueueLength: e.state.PendingLen(),
			Listeners:   len(e.state.Listeners()),
			TimerArmed:  e.timerArmed,
			CreatedAt:   e.state.CreatedAt(),
		}, nil
	})
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			return
		case op := <-e.ops:
			op()
			if e.closed {
				return
			}
		}
	}
}

// post queues op for the engine goroutine. It reports false once the engine
// is closed or ctx is done.
func (e *Engine) post(ctx context.Context, op func()) bool {
	select {
	case <-e.ctx.Done():
		return false
	default:
	}
	select {
	case e.ops <- op:
		return true
	case <-e.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// call runs fn on the engine goroutine and waits for its result.
func call[T any](ctx context.Context, e *Engine, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T

	ch := make(chan result, 1)
	if !e.post(ctx, func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}) {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, ErrSessionClosed
	}

	select {
	case r := <-ch:
		return r.v, r.err
	case <-e.done:
		// The operation may have been the one that closed the engine.
		select {
		case r := <-ch:
			return r.v, r.err
		default:
			return zero, ErrSessionClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (e *Engine) attach(sink Sink, channelRef string) {
	e.sink = sink
	e.state.SetConnected(true, channelRef)
	zlog.Debug().Msgf("playback: output attached: session=%s channel=%s", e.id, channelRef)

	if e.playState == StateIdle {
		e.playNext()
	}
}

func (e *Engine) enqueue(qt *track.QueuedTrack) EnqueueResult {
	pos := e.state.Push(qt)
	zlog.Debug().Msgf("playback: enqueued: session=%s title=%s position=%d", e.id, qt.Track.Title, pos)

	if e.playState == StateIdle && e.state.IsConnected() {
		e.playNext()
		if cur, ok := e.state.Current(); ok && cur == qt {
			return EnqueueResult{Position: 0, Started: true}
		}
		// The head failed to start and the queue moved on.
		return EnqueueResult{Position: e.positionOf(qt)}
	}
	return EnqueueResult{Position: pos}
}

func (e *Engine) positionOf(qt *track.QueuedTrack) int {
	snap := e.state.Snapshot(0)
	for i, p := range snap.Upcoming {
		if p == qt {
			return i + 1
		}
	}
	return 0
}

// playNext pops tracks until one starts or the queue is empty.
func (e *Engine) playNext() {
	for {
		qt, ok := e.state.PopNext()
		if !ok {
			e.becomeIdle()
			return
		}

		e.cancelTimer()
		e.gen++
		gen := e.gen

		err := e.sink.Play(e.ctx, qt, func(err error) {
			e.post(context.Background(), func() { e.onFinished(gen, err) })
		})
		if err != nil {
			zlog.Warn().Msgf("playback: track failed to start: session=%s title=%s error=%v", e.id, qt.Track.Title, err)
			e.emit(Event{Type: EventTrackFailed, Track: qt, Err: err})
			if errors.Is(err, ErrNotConnected) {
				// Output lost.
				e.fullStop("disconnected")
				return
			}
			continue
		}

		e.playState = StatePlaying
		e.paused = false
		zlog.Info().Msgf("track started: session=%s title=%s requester=%s", e.id, qt.Track.Title, qt.Requester.Name)
		e.emit(Event{Type: EventTrackStarted, Track: qt})
		return
	}
}

func (e *Engine) becomeIdle() {
	wasPlaying := e.playState == StatePlaying
	e.state.ClearCurrent()
	e.playState = StateIdle
	e.paused = false

	if e.state.IsConnected() {
		e.armTimer()
	}
	if wasPlaying {
		zlog.Info().Msgf("queue finished: session=%s", e.id)
		e.emit(Event{Type: EventQueueEmpty})
	}
}

func (e *Engine) onFinished(gen uint64, err error) {
	if gen != e.gen {
		zlog.Debug().Msgf("playback: stale completion ignored: session=%s gen=%d current_gen=%d", e.id, gen, e.gen)
		return
	}

	if cur, ok := e.state.Current(); ok {
		if err != nil {
			zlog.Warn().Msgf("playback error: session=%s title=%s error=%v", e.id, cur.Track.Title, err)
			e.emit(Event{Type: EventTrackFailed, Track: cur, Err: err})
		} else {
			zlog.Debug().Msgf("playback: track finished: session=%s title=%s", e.id, cur.Track.Title)
		}
	}
	e.playNext()
}

func (e *Engine) skip() error {
	cur, ok := e.state.Current()
	if !ok || e.sink == nil {
		return ErrNothingPlaying
	}
	zlog.Info().Msgf("track skipped: session=%s title=%s", e.id, cur.Track.Title)
	if err := e.sink.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop output")
	}
	return nil
}

func (e *Engine) pause() error {
	if _, ok := e.state.Current(); !ok || e.sink == nil {
		return ErrNothingPlaying
	}
	if e.paused {
		return nil
	}
	if err := e.sink.Pause(); err != nil {
		return errors.Wrap(err, "failed to pause output")
	}
	e.paused = true
	return nil
}

func (e *Engine) resume() error {
	if _, ok := e.state.Current(); !ok || e.sink == nil {
		return ErrNothingPlaying
	}
	if !e.paused {
		return ErrNotPaused
	}
	if err := e.sink.Resume(); err != nil {
		return errors.Wrap(err, "failed to resume output")
	}
	e.paused = false
	return nil
}

func (e *Engine) fullStop(reason string) {
	if e.closed {
		return
	}

	e.cancelTimer()
	removed := e.state.Clear()
	e.gen++
	e.playState = StateIdle
	e.paused = false

	if e.sink != nil {
		if err := e.sink.Stop(); err != nil {
			zlog.Debug().Msgf("playback: stop on teardown: session=%s error=%v", e.id, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), e.config.DisconnectTimeout)
		if err := e.sink.Disconnect(ctx); err != nil {
			zlog.Warn().Msgf("failed to disconnect output: session=%s error=%v", e.id, err)
		}
		cancel()
		e.sink = nil
	}
	e.state.SetConnected(false, "")

	e.closed = true
	e.cancel()
	zlog.Info().Msgf("session closed: session=%s reason=%s dropped=%d", e.id, reason, len(removed))
	e.emit(Event{Type: EventSessionClosed})

	if e.config.OnClosed != nil {
		e.config.OnClosed(e)
	}
}

func (e *Engine) armTimer() {
	if e.timer == nil {
		return
	}
	e.timerSeq++
	seq := e.timerSeq
	e.timerArmed = true
	e.timer.Arm(e.id, func() {
		e.post(context.Background(), func() { e.onInactive(seq) })
	})
}

func (e *Engine) cancelTimer() {
	if e.timer == nil || !e.timerArmed {
		return
	}
	e.timer.Cancel(e.id)
	e.timerArmed = false
}

// onInactive re-validates a timer fire before tearing down.
func (e *Engine) onInactive(seq uint64) {
	if !e.timerArmed || seq != e.timerSeq {
		zlog.Debug().Msgf("playback: stale inactivity fire ignored: session=%s", e.id)
		return
	}
	e.timerArmed = false

	if _, ok := e.state.Current(); ok || !e.state.IsConnected() {
		return
	}
	e.fullStop("inactivity")
}

// emit sends an event without blocking.
func (e *Engine) emit(ev Event) {
	if e.events == nil {
		return
	}
	ev.SessionID = e.id
	ev.State = e.playState
	select {
	case e.events <- ev:
	default:
		zlog.Warn().Msgf("playback: event dropped: session=%s type=%s", e.id, ev.Type)
	}
}
