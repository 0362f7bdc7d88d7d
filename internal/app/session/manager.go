// Package session provides the session manager.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/filter"
	"github.com/osa030/voicebox/internal/app/inactivity"
	"github.com/osa030/voicebox/internal/app/notification"
	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/app/session/registry"
	"github.com/osa030/voicebox/internal/app/session/state"
	"github.com/osa030/voicebox/internal/domain/track"
	"github.com/osa030/voicebox/internal/infra/config"
)

const (
	publishTimeout = 5 * time.Second
	closeTimeout   = 15 * time.Second

	// A request that loses a race with teardown is retried once on a fresh session.
	maxPlayAttempts = 2
)

// Resolver turns a query or URL into a playable track.
// Failures are marked with playback.ErrResolutionFailed.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*track.Track, error)
}

// NowPlayingPublisher announces tracks as they start. Failures are logged only.
type NowPlayingPublisher interface {
	PublishNowPlaying(ctx context.Context, sessionID string, qt *track.QueuedTrack) error
}

// PlayRequest is a request to play a query in a session.
type PlayRequest struct {
	SessionID  string
	ChannelRef string // Voice channel the requester is in
	Query      string
	Requester  track.Requester
}

// PlayResult describes an accepted request.
type PlayResult struct {
	Track    *track.QueuedTrack
	Position int  // 1-based position in the pending queue; 0 when started
	Started  bool // Playback started immediately
}

// Deps holds the collaborators of a Manager.
type Deps struct {
	Resolver  Resolver
	Connector playback.Connector
	Publisher NowPlayingPublisher // May be nil
}

// Manager owns every playback session.
type Manager struct {
	config *config.Config

	registry     *registry.SessionRegistry
	monitor      *inactivity.Monitor
	resolver     Resolver
	connector    playback.Connector
	publisher    NowPlayingPublisher
	filterChain  *filter.Chain
	limiter      *requestLimiter
	notification *notification.Manager

	events chan playback.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewManager creates a new session manager and starts its event loop.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if deps.Connector == nil {
		return nil, errors.New("connector is required")
	}

	chain, err := filter.NewChainFromSettings(cfg.EnabledFilters())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filter chain")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:       cfg,
		registry:     registry.NewSessionRegistry(cfg.Playback.MaxSessions),
		monitor:      inactivity.NewMonitor(cfg.Playback.InactivityTimeout),
		resolver:     deps.Resolver,
		connector:    deps.Connector,
		publisher:    deps.Publisher,
		filterChain:  chain,
		limiter:      newRequestLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		notification: notification.NewManager(),
		events:       make(chan playback.Event, cfg.Playback.EventBuffer),
		ctx:          ctx,
		cancel:       cancel,
	}

	m.wg.Add(1)
	go m.playbackLoop()

	return m, nil
}

// RequestPlay resolves a request and enqueues it, joining the requester's
// voice channel when needed.
func (m *Manager) RequestPlay(ctx context.Context, req PlayRequest) (*PlayResult, error) {
	if req.ChannelRef == "" {
		return nil, playback.ErrNoVoiceChannel
	}
	if !m.limiter.Allow(req.Requester.ID) {
		zlog.Warn().Msgf("play request rate limited: session=%s requester=%s", req.SessionID, req.Requester.ID)
		return nil, playback.ErrRateLimited
	}
	if req.Requester.Type == "" {
		req.Requester.Type = track.RequesterTypeUser
	}

	// A session that exists when the request arrives owns it. If that session
	// is stopped while the query resolves, the result is dropped instead of
	// starting a new session.
	bound, err := m.registry.Get(req.SessionID)
	if err != nil || bound.Closed() {
		bound = nil
	}

	// Resolution runs outside every session.
	rctx, cancel := context.WithTimeout(ctx, m.config.Resolver.Timeout)
	t, err := m.resolver.Resolve(rctx, req.Query)
	cancel()
	if err != nil {
		zlog.Warn().Msgf("resolution failed: session=%s query=%q error=%v", req.SessionID, req.Query, err)
		if !errors.Is(err, playback.ErrResolutionFailed) {
			err = errors.Mark(err, playback.ErrResolutionFailed)
		}
		return nil, err
	}

	qt := &track.QueuedTrack{
		Track:     *t,
		Requester: req.Requester,
		AddedAt:   time.Now(),
	}

	if bound != nil {
		res, err := m.enqueueResolved(ctx, req, qt, bound)
		if errors.Is(err, playback.ErrSessionClosed) {
			zlog.Info().Msgf("late result discarded: session=%s title=%s", req.SessionID, qt.Track.Title)
		}
		return res, err
	}

	// Only a session created by this request may be retried: it can be
	// reaped between creation and attach.
	for attempt := 1; ; attempt++ {
		res, err := m.enqueueResolved(ctx, req, qt, nil)
		if errors.Is(err, playback.ErrSessionClosed) && attempt < maxPlayAttempts {
			zlog.Debug().Msgf("session closed during request, retrying: session=%s", req.SessionID)
			continue
		}
		if errors.Is(err, playback.ErrSessionClosed) {
			zlog.Info().Msgf("late result discarded: session=%s title=%s", req.SessionID, qt.Track.Title)
		}
		return res, err
	}
}

// enqueueResolved places a resolved track into the session. With a nil bound
// engine the session is looked up or created; otherwise bound must still be live.
func (m *Manager) enqueueResolved(ctx context.Context, req PlayRequest, qt *track.QueuedTrack, bound *playback.Engine) (*PlayResult, error) {
	e := bound
	if e != nil && e.Closed() {
		return nil, playback.ErrSessionClosed
	}

	if err := m.checkFilters(ctx, req, qt, e); err != nil {
		return nil, err
	}

	if e == nil {
		var created bool
		var err error
		e, created, err = m.engineFor(req.SessionID)
		if err != nil {
			return nil, err
		}
		if created {
			zlog.Info().Msgf("session created: session=%s", req.SessionID)
		}
	}

	if err := m.ensureConnected(ctx, e, req.ChannelRef); err != nil {
		return nil, err
	}

	res, err := e.Enqueue(ctx, qt)
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("track accepted: session=%s title=%s requester=%s started=%t position=%d",
		req.SessionID, qt.Track.Title, req.Requester.Name, res.Started, res.Position)
	return &PlayResult{Track: qt, Position: res.Position, Started: res.Started}, nil
}

// checkFilters runs the filter chain against the target session. A session
// that does not exist yet is checked as an empty one.
func (m *Manager) checkFilters(ctx context.Context, req PlayRequest, qt *track.QueuedTrack, e *playback.Engine) error {
	if e == nil {
		e, _ = m.registry.Get(req.SessionID)
	}
	var s *state.Session
	if e != nil {
		s = e.Session()
	} else {
		s = state.New(req.SessionID)
	}

	freq := filter.TrackRequest{
		SessionID:   req.SessionID,
		RequesterID: req.Requester.ID,
		Query:       req.Query,
		Queue:       s,
	}
	result := m.filterChain.Execute(ctx, freq, qt.Track, s.Listener(req.Requester), req.Requester.Type)
	if !result.Accepted {
		zlog.Info().Msgf("track request rejected: session=%s requester=%s title=%s filter=%s code=%s",
			req.SessionID, req.Requester.Name, qt.Track.Title, result.Filter, result.Code)
		return playback.NewRejectedError(result.Filter, result.Code)
	}
	return nil
}

// engineFor returns the live engine of a session, creating it on first use.
// An engine that finished teardown but is still registered is replaced.
func (m *Manager) engineFor(sessionID string) (*playback.Engine, bool, error) {
	for {
		e, created, err := m.registry.GetOrCreate(sessionID, func() *playback.Engine {
			return m.newEngine(sessionID)
		})
		if err != nil {
			zlog.Warn().Msgf("session registry full: session=%s sessions=%d", sessionID, m.registry.Count())
			return nil, false, err
		}
		if e.Closed() {
			m.registry.RemoveIf(sessionID, e)
			continue
		}
		return e, created, nil
	}
}

func (m *Manager) newEngine(sessionID string) *playback.Engine {
	return playback.NewEngine(sessionID, m.monitor, m.events, playback.Config{
		MailboxSize: m.config.Playback.MailboxSize,
		OnClosed: func(e *playback.Engine) {
			m.registry.RemoveIf(e.ID(), e)
		},
	})
}

// ensureConnected joins, moves or revalidates the session's output so that it
// plays into channelRef. On failure a session that never got an output is
// reaped, and so is one whose output was closed by the failed attempt.
func (m *Manager) ensureConnected(ctx context.Context, e *playback.Engine, channelRef string) error {
	wasConnected := e.Session().IsConnected()
	previous := e.Session().ChannelRef()

	cctx, cancel := context.WithTimeout(ctx, m.config.Discord.ConnectTimeout)
	sink, err := m.connector.Connect(cctx, e.ID(), channelRef)
	cancel()
	if err != nil {
		zlog.Error().Msgf("failed to connect output: session=%s channel=%s error=%v", e.ID(), channelRef, err)
		if stopped, serr := e.StopIfUnused(context.Background(), "connect_failed"); serr == nil && stopped {
			zlog.Debug().Msgf("unused session reaped: session=%s", e.ID())
		} else if wasConnected {
			// A failed move closes the previous connection.
			if stopped, serr := e.StopIfDisconnected(context.Background(), "disconnected"); serr == nil && stopped {
				zlog.Info().Msgf("session lost its output: session=%s channel=%s", e.ID(), previous)
			}
		}
		return errors.Mark(errors.Wrap(err, "failed to join voice channel"), playback.ErrConnectFailed)
	}

	if err := e.Attach(ctx, sink, channelRef); err != nil {
		if errors.Is(err, playback.ErrSessionClosed) {
			// The session was torn down while connecting; release the output.
			dctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			_ = sink.Disconnect(dctx)
			cancel()
		}
		return err
	}
	if !wasConnected || previous != channelRef {
		zlog.Info().Msgf("output connected: session=%s channel=%s previous=%s", e.ID(), channelRef, previous)
	}
	return nil
}

// RequestSkip skips the current track of a session.
func (m *Manager) RequestSkip(ctx context.Context, sessionID string) error {
	e, err := m.registry.Get(sessionID)
	if err != nil {
		return playback.ErrNothingPlaying
	}
	return closedAs(e.Skip(ctx), playback.ErrNothingPlaying)
}

// RequestStop stops playback, clears the queue and disconnects.
func (m *Manager) RequestStop(ctx context.Context, sessionID string) error {
	e, err := m.registry.Get(sessionID)
	if err != nil {
		return playback.ErrNotConnected
	}
	return e.Stop(ctx, "stop")
}

// RequestQueueView returns a read-only copy of a session queue limited to the
// configured view size. An empty or missing session yields ErrQueueEmpty.
func (m *Manager) RequestQueueView(sessionID string) (state.Snapshot, error) {
	e, err := m.registry.Get(sessionID)
	if err != nil {
		return state.Snapshot{SessionID: sessionID}, playback.ErrQueueEmpty
	}
	snap := e.Snapshot(m.config.Playback.QueueViewLimit)
	if snap.IsEmpty() {
		return snap, playback.ErrQueueEmpty
	}
	return snap, nil
}

// Pause pauses the current track.
func (m *Manager) Pause(ctx context.Context, sessionID string) error {
	e, err := m.registry.Get(sessionID)
	if err != nil {
		return playback.ErrNothingPlaying
	}
	return closedAs(e.Pause(ctx), playback.ErrNothingPlaying)
}

// Resume resumes a paused track.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	e, err := m.registry.Get(sessionID)
	if err != nil {
		return playback.ErrNothingPlaying
	}
	return closedAs(e.Resume(ctx), playback.ErrNothingPlaying)
}

// TogglePause pauses a playing session or resumes a paused one.
// It reports whether the session is paused afterwards.
func (m *Manager) TogglePause(ctx context.Context, sessionID string) (bool, error) {
	st, err := m.Status(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if st.Current == nil {
		return false, playback.ErrNothingPlaying
	}
	if st.Paused {
		return false, m.Resume(ctx, sessionID)
	}
	return true, m.Pause(ctx, sessionID)
}

// Status returns the status of one session.
func (m *Manager) Status(ctx context.Context, sessionID string) (playback.Status, error) {
	e, err := m.registry.Get(sessionID)
	if err != nil {
		return playback.Status{}, playback.ErrNotConnected
	}
	st, err := e.Status(ctx)
	return st, closedAs(err, playback.ErrNotConnected)
}

// Sessions returns the status of every live session ordered by creation time.
func (m *Manager) Sessions(ctx context.Context) []playback.Status {
	engines := m.registry.All()
	result := make([]playback.Status, 0, len(engines))
	for _, e := range engines {
		st, err := e.Status(ctx)
		if err != nil {
			continue
		}
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// HandleVoiceDisconnect tears a session down after its output was
// disconnected from outside (kicked, channel deleted).
func (m *Manager) HandleVoiceDisconnect(ctx context.Context, sessionID string) {
	e, err := m.registry.Get(sessionID)
	if err != nil {
		return
	}
	zlog.Info().Msgf("output disconnected externally: session=%s", sessionID)
	if err := e.Stop(ctx, "disconnected"); err != nil {
		zlog.Warn().Msgf("failed to stop disconnected session: session=%s error=%v", sessionID, err)
	}
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Done is closed once the manager is shutting down.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	return m.registry.Count()
}

// Close stops every session and the event loop.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		var wg sync.WaitGroup
		for _, e := range m.registry.All() {
			wg.Add(1)
			go func(e *playback.Engine) {
				defer wg.Done()
				if err := e.Stop(ctx, "shutdown"); err != nil {
					zlog.Warn().Msgf("failed to stop session: session=%s error=%v", e.ID(), err)
				}
			}(e)
		}
		wg.Wait()

		m.cancel()
		m.wg.Wait()
		m.monitor.Close()
		m.notification.Close()
		zlog.Info().Msg("session manager closed")
	})
}

// playbackLoop handles playback events of every session.
func (m *Manager) playbackLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			m.drainEvents()
			return
		case ev := <-m.events:
			m.safeHandle(ev)
		}
	}
}

func (m *Manager) drainEvents() {
	for {
		select {
		case ev := <-m.events:
			m.safeHandle(ev)
		default:
			return
		}
	}
}

func (m *Manager) safeHandle(ev playback.Event) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback event handler panicked: type=%s session=%s panic=%v", ev.Type, ev.SessionID, r)
		}
	}()
	m.handlePlaybackEvent(ev)
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(ev playback.Event) {
	zlog.Debug().Msgf("playback event: type=%s session=%s", ev.Type, ev.SessionID)

	switch ev.Type {
	case playback.EventTrackStarted:
		m.onTrackStarted(ev)

	case playback.EventTrackFailed:
		reason := ""
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		m.notification.Broadcast(&notification.Notification{
			Type:      notification.TypeTrackFailed,
			SessionID: ev.SessionID,
			Track:     notification.NewTrackInfo(ev.Track),
			Reason:    reason,
		})

	case playback.EventQueueEmpty:
		m.notification.Broadcast(&notification.Notification{
			Type:      notification.TypeQueueEmpty,
			SessionID: ev.SessionID,
		})

	case playback.EventSessionClosed:
		m.notification.Broadcast(&notification.Notification{
			Type:      notification.TypeSessionClosed,
			SessionID: ev.SessionID,
		})
	}
}

func (m *Manager) onTrackStarted(ev playback.Event) {
	if ev.Track == nil {
		return
	}

	if m.publisher != nil {
		ctx, cancel := context.WithTimeout(m.ctx, publishTimeout)
		if err := m.publisher.PublishNowPlaying(ctx, ev.SessionID, ev.Track); err != nil {
			zlog.Warn().Msgf("failed to publish now playing: session=%s title=%s error=%v", ev.SessionID, ev.Track.Track.Title, err)
		}
		cancel()
	}

	zlog.Debug().Msgf("broadcast TRACK_STARTED: session=%s title=%s", ev.SessionID, ev.Track.Track.Title)
	m.notification.Broadcast(&notification.Notification{
		Type:      notification.TypeTrackStarted,
		SessionID: ev.SessionID,
		Track:     notification.NewTrackInfo(ev.Track),
	})
}

// closedAs maps a discarded operation on a closed session to a user-facing error.
func closedAs(err, target error) error {
	if errors.Is(err, playback.ErrSessionClosed) {
		return target
	}
	return err
}
