package connect

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/notification"
	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/app/session"
	"github.com/osa030/voicebox/internal/app/session/state"
	"github.com/osa030/voicebox/internal/domain/track"
	"github.com/osa030/voicebox/internal/infra/config"
)

// ListenerSessions is the session surface used by ListenerService.
type ListenerSessions interface {
	RequestPlay(ctx context.Context, req session.PlayRequest) (*session.PlayResult, error)
	RequestQueueView(sessionID string) (state.Snapshot, error)
	GetNotificationManager() *notification.Manager
	Done() <-chan struct{}
}

// ListenerService implements the ListenerService RPC.
type ListenerService struct {
	session ListenerSessions
	config  *config.Config
}

// NewListenerService creates a new ListenerService.
func NewListenerService(session ListenerSessions, cfg *config.Config) *ListenerService {
	return &ListenerService{
		session: session,
		config:  cfg,
	}
}

// NewListenerServiceHandler builds an HTTP handler serving svc.
// It returns the path prefix to mount the handler on.
func NewListenerServiceHandler(svc *ListenerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListenerServicePlayProcedure, connect.NewUnaryHandler(ListenerServicePlayProcedure, svc.Play, opts...))
	mux.Handle(ListenerServiceGetQueueProcedure, connect.NewUnaryHandler(ListenerServiceGetQueueProcedure, svc.GetQueue, opts...))
	mux.Handle(ListenerServiceSubscribeNotificationsProcedure, connect.NewServerStreamHandler(ListenerServiceSubscribeNotificationsProcedure, svc.SubscribeNotifications, opts...))
	return "/" + ListenerServiceName + "/", mux
}

// Play handles track requests from outside Discord.
func (s *ListenerService) Play(
	ctx context.Context,
	req *connect.Request[PlayRequest],
) (*connect.Response[PlayResponse], error) {
	msg := req.Msg
	if strings.TrimSpace(msg.SessionID) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("session_id is required"))
	}

	name := msg.RequesterName
	if name == "" {
		name = msg.RequesterID
	}
	res, err := s.session.RequestPlay(ctx, session.PlayRequest{
		SessionID:  msg.SessionID,
		ChannelRef: msg.ChannelID,
		Query:      msg.Query,
		Requester: track.Requester{
			ID:   msg.RequesterID,
			Name: name,
			Type: track.RequesterTypeUser,
		},
	})
	if err != nil {
		code := playback.ErrorCode(err)
		if code == "default" {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&PlayResponse{
			Success: false,
			Code:    code,
			Message: s.config.GetMessage(code),
		}), nil
	}

	return connect.NewResponse(&PlayResponse{
		Success:  true,
		Message:  res.Track.Track.Title,
		Track:    notification.NewTrackInfo(res.Track),
		Position: res.Position,
		Started:  res.Started,
	}), nil
}

// GetQueue returns a session's queue.
func (s *ListenerService) GetQueue(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[GetQueueResponse], error) {
	snapshot, err := s.session.RequestQueueView(req.Msg.SessionID)
	if err != nil && !errors.Is(err, playback.ErrQueueEmpty) {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toQueueResponse(snapshot)), nil
}

// SubscribeNotifications streams session notifications until the client
// goes away or the server shuts down.
func (s *ListenerService) SubscribeNotifications(
	ctx context.Context,
	req *connect.Request[SubscribeNotificationsRequest],
	stream *connect.ServerStream[Notification],
) error {
	notifManager := s.session.GetNotificationManager()
	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := notifManager.Subscribe(adapter, req.Msg.SessionID)
	zlog.Info().Msgf("notification subscriber connected: id=%s session=%s", subscriptionID, req.Msg.SessionID)

	// Wait for context cancellation or server shutdown
	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}

	// Unsubscribe when done
	notifManager.Unsubscribe(subscriptionID)
	zlog.Info().Msgf("notification subscriber disconnected: id=%s", subscriptionID)

	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// ServerStream is not safe for concurrent sends.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(n)
}
