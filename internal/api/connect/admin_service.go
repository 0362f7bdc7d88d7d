package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/app/session/state"
	"github.com/osa030/voicebox/internal/infra/config"
)

// AdminSessions is the session surface used by AdminService.
type AdminSessions interface {
	Sessions(ctx context.Context) []playback.Status
	Status(ctx context.Context, sessionID string) (playback.Status, error)
	RequestQueueView(sessionID string) (state.Snapshot, error)
	RequestSkip(ctx context.Context, sessionID string) error
	RequestStop(ctx context.Context, sessionID string) error
	Pause(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) error
}

// AdminService implements the AdminService RPC.
type AdminService struct {
	session AdminSessions
	config  *config.Config
}

// NewAdminService creates a new AdminService.
func NewAdminService(session AdminSessions, cfg *config.Config) *AdminService {
	return &AdminService{
		session: session,
		config:  cfg,
	}
}

// NewAdminServiceHandler builds an HTTP handler serving svc.
// It returns the path prefix to mount the handler on.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AdminServiceListSessionsProcedure, connect.NewUnaryHandler(AdminServiceListSessionsProcedure, svc.ListSessions, opts...))
	mux.Handle(AdminServiceGetStatusProcedure, connect.NewUnaryHandler(AdminServiceGetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(AdminServiceGetQueueProcedure, connect.NewUnaryHandler(AdminServiceGetQueueProcedure, svc.GetQueue, opts...))
	mux.Handle(AdminServiceSkipProcedure, connect.NewUnaryHandler(AdminServiceSkipProcedure, svc.Skip, opts...))
	mux.Handle(AdminServiceStopProcedure, connect.NewUnaryHandler(AdminServiceStopProcedure, svc.Stop, opts...))
	mux.Handle(AdminServicePauseProcedure, connect.NewUnaryHandler(AdminServicePauseProcedure, svc.Pause, opts...))
	mux.Handle(AdminServiceResumeProcedure, connect.NewUnaryHandler(AdminServiceResumeProcedure, svc.Resume, opts...))
	return "/" + AdminServiceName + "/", mux
}

// ListSessions returns every live session.
func (s *AdminService) ListSessions(
	ctx context.Context,
	req *connect.Request[ListSessionsRequest],
) (*connect.Response[ListSessionsResponse], error) {
	statuses := s.session.Sessions(ctx)
	infos := make([]*SessionStatus, len(statuses))
	for i, st := range statuses {
		infos[i] = toSessionStatus(st)
	}

	return connect.NewResponse(&ListSessionsResponse{
		Sessions: infos,
	}), nil
}

// GetStatus returns one session's status.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[GetStatusResponse], error) {
	st, err := s.session.Status(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&GetStatusResponse{
		Status: toSessionStatus(st),
	}), nil
}

// GetQueue returns a session's queue, up to the configured view limit.
func (s *AdminService) GetQueue(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[GetQueueResponse], error) {
	snapshot, err := s.session.RequestQueueView(req.Msg.SessionID)
	if err != nil && !errors.Is(err, playback.ErrQueueEmpty) {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(toQueueResponse(snapshot)), nil
}

// Skip skips the current track.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(s.session.RequestSkip(ctx, req.Msg.SessionID), "skipped")
}

// Stop stops the session and leaves the voice channel.
func (s *AdminService) Stop(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(s.session.RequestStop(ctx, req.Msg.SessionID), "stopped")
}

// Pause pauses the session.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(s.session.Pause(ctx, req.Msg.SessionID), "paused")
}

// Resume resumes the session.
func (s *AdminService) Resume(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[ActionResponse], error) {
	return s.action(s.session.Resume(ctx, req.Msg.SessionID), "resumed")
}

func (s *AdminService) action(err error, successCode string) (*connect.Response[ActionResponse], error) {
	if err != nil {
		code := playback.ErrorCode(err)
		if code == "default" {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return connect.NewResponse(&ActionResponse{
			Success: false,
			Code:    code,
			Message: s.config.GetMessage(code),
		}), nil
	}

	return connect.NewResponse(&ActionResponse{
		Success: true,
		Message: s.config.GetMessage(successCode),
	}), nil
}

// toConnectError maps session errors to RPC status codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, playback.ErrNotConnected):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, playback.ErrSessionClosed):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, playback.ErrRateLimited):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, playback.ErrRegistryFull):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
