package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/voicebox/internal/app/notification"
	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/app/session"
	"github.com/osa030/voicebox/internal/app/session/state"
	"github.com/osa030/voicebox/internal/domain/track"
	"github.com/osa030/voicebox/internal/infra/config"
)

const testAdminToken = "secret"

type fakeSessions struct {
	statuses  []playback.Status
	statusErr error
	snapshot  state.Snapshot
	queueErr  error
	actionErr error
	playErr   error
	played    []session.PlayRequest
	notif     *notification.Manager
	done      chan struct{}
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		notif: notification.NewManager(),
		done:  make(chan struct{}),
	}
}

func (f *fakeSessions) Sessions(ctx context.Context) []playback.Status { return f.statuses }

func (f *fakeSessions) Status(ctx context.Context, sessionID string) (playback.Status, error) {
	if f.statusErr != nil {
		return playback.Status{}, f.statusErr
	}
	return f.statuses[0], nil
}

func (f *fakeSessions) RequestQueueView(sessionID string) (state.Snapshot, error) {
	return f.snapshot, f.queueErr
}

func (f *fakeSessions) RequestSkip(ctx context.Context, sessionID string) error { return f.actionErr }
func (f *fakeSessions) RequestStop(ctx context.Context, sessionID string) error { return f.actionErr }
func (f *fakeSessions) Pause(ctx context.Context, sessionID string) error       { return f.actionErr }
func (f *fakeSessions) Resume(ctx context.Context, sessionID string) error      { return f.actionErr }

func (f *fakeSessions) RequestPlay(ctx context.Context, req session.PlayRequest) (*session.PlayResult, error) {
	f.played = append(f.played, req)
	if f.playErr != nil {
		return nil, f.playErr
	}
	return &session.PlayResult{
		Track:    queued("Song A", req.Requester.ID),
		Position: 2,
	}, nil
}

func (f *fakeSessions) GetNotificationManager() *notification.Manager { return f.notif }
func (f *fakeSessions) Done() <-chan struct{}                         { return f.done }

func queued(title, requesterID string) *track.QueuedTrack {
	return &track.QueuedTrack{
		Track: track.Track{
			Title:    title,
			URL:      "https://example.com/" + title,
			Duration: 3 * time.Minute,
		},
		Requester: track.Requester{ID: requesterID, Name: "user-" + requesterID},
		AddedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("discord:\n  token: d\nadmin:\n  token: " + testAdminToken + "\n"))
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, f *fakeSessions) (*AdminServiceClient, *ListenerServiceClient, string) {
	t.Helper()
	cfg := testConfig(t)

	mux := http.NewServeMux()
	mux.Handle(NewAdminServiceHandler(NewAdminService(f, cfg),
		connect.WithInterceptors(NewAdminAuthInterceptor(cfg))))
	mux.Handle(NewListenerServiceHandler(NewListenerService(f, cfg)))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	admin := NewAdminServiceClient(srv.Client(), srv.URL,
		connect.WithInterceptors(NewAdminTokenInterceptor(testAdminToken)))
	listener := NewListenerServiceClient(srv.Client(), srv.URL)
	return admin, listener, srv.URL
}

func TestAdminService_ListSessions(t *testing.T) {
	f := newFakeSessions()
	f.statuses = []playback.Status{{
		SessionID:   "111",
		State:       playback.StatePlaying,
		Connected:   true,
		ChannelRef:  "222",
		Current:     queued("Song A", "u1"),
		QueueLength: 3,
		Listeners:   2,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	admin, _, _ := newTestServer(t, f)

	resp, err := admin.ListSessions(context.Background(), connect.NewRequest(&ListSessionsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Sessions, 1)

	got := resp.Msg.Sessions[0]
	assert.Equal(t, "111", got.SessionID)
	assert.Equal(t, "playing", got.State)
	assert.True(t, got.Connected)
	assert.Equal(t, "222", got.ChannelID)
	assert.Equal(t, 3, got.QueueLength)
	assert.Equal(t, 2, got.Listeners)
	assert.Equal(t, "2026-01-02T03:04:05Z", got.CreatedAt)
	require.NotNil(t, got.Current)
	assert.Equal(t, "Song A", got.Current.Title)
	assert.Equal(t, "03:00", got.Current.Duration)
}

func TestAdminService_Auth(t *testing.T) {
	f := newFakeSessions()
	_, _, url := newTestServer(t, f)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong token", token: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []connect.ClientOption
			if tt.token != "" {
				opts = append(opts, connect.WithInterceptors(NewAdminTokenInterceptor(tt.token)))
			}
			client := NewAdminServiceClient(http.DefaultClient, url, opts...)

			_, err := client.ListSessions(context.Background(), connect.NewRequest(&ListSessionsRequest{}))
			require.Error(t, err)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}
}

func TestAdminService_GetStatusErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{name: "unknown session", err: playback.ErrNotConnected, want: connect.CodeNotFound},
		{name: "closed session", err: errors.Wrap(playback.ErrSessionClosed, "engine"), want: connect.CodeNotFound},
		{name: "registry full", err: playback.ErrRegistryFull, want: connect.CodeResourceExhausted},
		{name: "unexpected", err: errors.New("boom"), want: connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSessions()
			f.statusErr = tt.err
			admin, _, _ := newTestServer(t, f)

			_, err := admin.GetStatus(context.Background(), connect.NewRequest(&SessionRequest{SessionID: "111"}))
			require.Error(t, err)
			assert.Equal(t, tt.want, connect.CodeOf(err))
		})
	}
}

func TestAdminService_Actions(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		call        func(*AdminServiceClient, context.Context, *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error)
		wantSuccess bool
		wantCode    string
		wantMessage string
	}{
		{
			name:        "skip succeeds",
			call:        (*AdminServiceClient).Skip,
			wantSuccess: true,
			wantMessage: "⏭️ Skipped.",
		},
		{
			name:        "stop succeeds",
			call:        (*AdminServiceClient).Stop,
			wantSuccess: true,
			wantMessage: "⏹️ Stopped and disconnected.",
		},
		{
			name:        "skip with nothing playing",
			err:         playback.ErrNothingPlaying,
			call:        (*AdminServiceClient).Skip,
			wantCode:    "nothing_playing",
			wantMessage: "Nothing is playing.",
		},
		{
			name:        "resume when not paused",
			err:         playback.ErrNotPaused,
			call:        (*AdminServiceClient).Resume,
			wantCode:    "not_paused",
			wantMessage: "Playback is not paused.",
		},
		{
			name:        "pause on unknown session",
			err:         playback.ErrNotConnected,
			call:        (*AdminServiceClient).Pause,
			wantCode:    "not_connected",
			wantMessage: "I'm not connected to a voice channel.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSessions()
			f.actionErr = tt.err
			admin, _, _ := newTestServer(t, f)

			resp, err := tt.call(admin, context.Background(), connect.NewRequest(&SessionRequest{SessionID: "111"}))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, resp.Msg.Success)
			assert.Equal(t, tt.wantCode, resp.Msg.Code)
			assert.Equal(t, tt.wantMessage, resp.Msg.Message)
		})
	}
}

func TestAdminService_ActionUnexpectedError(t *testing.T) {
	f := newFakeSessions()
	f.actionErr = errors.New("boom")
	admin, _, _ := newTestServer(t, f)

	_, err := admin.Skip(context.Background(), connect.NewRequest(&SessionRequest{SessionID: "111"}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
}

func TestListenerService_GetQueue(t *testing.T) {
	f := newFakeSessions()
	f.snapshot = state.Snapshot{
		SessionID: "111",
		Current:   queued("Now", "u1"),
		Upcoming:  []*track.QueuedTrack{queued("Next", "u2")},
		Truncated: true,
		Remaining: 4,
	}
	_, listener, _ := newTestServer(t, f)

	resp, err := listener.GetQueue(context.Background(), connect.NewRequest(&SessionRequest{SessionID: "111"}))
	require.NoError(t, err)
	require.NotNil(t, resp.Msg.Current)
	assert.Equal(t, "Now", resp.Msg.Current.Title)
	require.Len(t, resp.Msg.Upcoming, 1)
	assert.Equal(t, "Next", resp.Msg.Upcoming[0].Title)
	assert.Equal(t, 4, resp.Msg.Remaining)
}

func TestListenerService_GetQueueEmpty(t *testing.T) {
	f := newFakeSessions()
	f.queueErr = playback.ErrQueueEmpty
	_, listener, _ := newTestServer(t, f)

	resp, err := listener.GetQueue(context.Background(), connect.NewRequest(&SessionRequest{SessionID: "111"}))
	require.NoError(t, err)
	assert.Nil(t, resp.Msg.Current)
	assert.Empty(t, resp.Msg.Upcoming)
}

func TestListenerService_Play(t *testing.T) {
	f := newFakeSessions()
	_, listener, _ := newTestServer(t, f)

	resp, err := listener.Play(context.Background(), connect.NewRequest(&PlayRequest{
		SessionID:   "111",
		ChannelID:   "222",
		Query:       "never gonna give you up",
		RequesterID: "u1",
	}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Success)
	assert.Equal(t, "Song A", resp.Msg.Message)
	assert.Equal(t, 2, resp.Msg.Position)
	assert.False(t, resp.Msg.Started)

	require.Len(t, f.played, 1)
	got := f.played[0]
	assert.Equal(t, "111", got.SessionID)
	assert.Equal(t, "222", got.ChannelRef)
	assert.Equal(t, "u1", got.Requester.Name, "name falls back to the id")
	assert.Equal(t, track.RequesterTypeUser, got.Requester.Type)
}

func TestListenerService_PlayErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      *PlayRequest
		playErr  error
		wantCode connect.Code
		wantMsg  string
	}{
		{
			name:     "missing session",
			req:      &PlayRequest{Query: "x"},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:    "resolution failure",
			req:     &PlayRequest{SessionID: "111", Query: "x"},
			playErr: errors.Mark(errors.New("no results"), playback.ErrResolutionFailed),
			wantMsg: "Could not find anything playable for that request.",
		},
		{
			name:    "rejected by filter",
			req:     &PlayRequest{SessionID: "111", Query: "x"},
			playErr: playback.NewRejectedError("duplicate_track_filter", "duplicate_track"),
			wantMsg: "That track is already playing or queued.",
		},
		{
			name:     "unexpected",
			req:      &PlayRequest{SessionID: "111", Query: "x"},
			playErr:  errors.New("boom"),
			wantCode: connect.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSessions()
			f.playErr = tt.playErr
			_, listener, _ := newTestServer(t, f)

			resp, err := listener.Play(context.Background(), connect.NewRequest(tt.req))
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.False(t, resp.Msg.Success)
			assert.Equal(t, tt.wantMsg, resp.Msg.Message)
		})
	}
}

func TestListenerService_SubscribeNotifications(t *testing.T) {
	f := newFakeSessions()
	_, listener, _ := newTestServer(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := listener.SubscribeNotifications(ctx, connect.NewRequest(&SubscribeNotificationsRequest{SessionID: "111"}))
	require.NoError(t, err)
	defer stream.Close()

	require.Eventually(t, func() bool {
		return f.notif.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Filtered out by session
	f.notif.Broadcast(&notification.Notification{Type: notification.TypeQueueEmpty, SessionID: "999"})
	f.notif.Broadcast(&notification.Notification{
		Type:      notification.TypeTrackStarted,
		SessionID: "111",
		Track:     notification.NewTrackInfo(queued("Song A", "u1")),
	})

	require.True(t, stream.Receive(), "stream error: %v", stream.Err())
	got := stream.Msg()
	assert.Equal(t, notification.TypeTrackStarted, got.Type)
	assert.Equal(t, "111", got.SessionID)
	require.NotNil(t, got.Track)
	assert.Equal(t, "Song A", got.Track.Title)

	cancel()
	require.Eventually(t, func() bool {
		return f.notif.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCodec(t *testing.T) {
	var c Codec
	assert.Equal(t, "json", c.Name())

	b, err := c.Marshal(&SessionRequest{SessionID: "111"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"111"}`, string(b))

	var req SessionRequest
	require.NoError(t, c.Unmarshal(nil, &req))
	assert.Empty(t, req.SessionID)

	assert.Error(t, c.Unmarshal([]byte("{"), &req))
}
