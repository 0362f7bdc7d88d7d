package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// AdminServiceClient is a client for the AdminService RPC.
type AdminServiceClient struct {
	listSessions *connect.Client[ListSessionsRequest, ListSessionsResponse]
	getStatus    *connect.Client[SessionRequest, GetStatusResponse]
	getQueue     *connect.Client[SessionRequest, GetQueueResponse]
	skip         *connect.Client[SessionRequest, ActionResponse]
	stop         *connect.Client[SessionRequest, ActionResponse]
	pause        *connect.Client[SessionRequest, ActionResponse]
	resume       *connect.Client[SessionRequest, ActionResponse]
}

// NewAdminServiceClient creates a client for the AdminService at baseURL.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &AdminServiceClient{
		listSessions: connect.NewClient[ListSessionsRequest, ListSessionsResponse](httpClient, baseURL+AdminServiceListSessionsProcedure, opts...),
		getStatus:    connect.NewClient[SessionRequest, GetStatusResponse](httpClient, baseURL+AdminServiceGetStatusProcedure, opts...),
		getQueue:     connect.NewClient[SessionRequest, GetQueueResponse](httpClient, baseURL+AdminServiceGetQueueProcedure, opts...),
		skip:         connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminServiceSkipProcedure, opts...),
		stop:         connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminServiceStopProcedure, opts...),
		pause:        connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminServicePauseProcedure, opts...),
		resume:       connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminServiceResumeProcedure, opts...),
	}
}

// ListSessions calls AdminService.ListSessions.
func (c *AdminServiceClient) ListSessions(ctx context.Context, req *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error) {
	return c.listSessions.CallUnary(ctx, req)
}

// GetStatus calls AdminService.GetStatus.
func (c *AdminServiceClient) GetStatus(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[GetStatusResponse], error) {
	return c.getStatus.CallUnary(ctx, req)
}

// GetQueue calls AdminService.GetQueue.
func (c *AdminServiceClient) GetQueue(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[GetQueueResponse], error) {
	return c.getQueue.CallUnary(ctx, req)
}

// Skip calls AdminService.Skip.
func (c *AdminServiceClient) Skip(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.skip.CallUnary(ctx, req)
}

// Stop calls AdminService.Stop.
func (c *AdminServiceClient) Stop(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.stop.CallUnary(ctx, req)
}

// Pause calls AdminService.Pause.
func (c *AdminServiceClient) Pause(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.pause.CallUnary(ctx, req)
}

// Resume calls AdminService.Resume.
func (c *AdminServiceClient) Resume(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.resume.CallUnary(ctx, req)
}

// ListenerServiceClient is a client for the ListenerService RPC.
type ListenerServiceClient struct {
	play      *connect.Client[PlayRequest, PlayResponse]
	getQueue  *connect.Client[SessionRequest, GetQueueResponse]
	subscribe *connect.Client[SubscribeNotificationsRequest, Notification]
}

// NewListenerServiceClient creates a client for the ListenerService at baseURL.
func NewListenerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ListenerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ListenerServiceClient{
		play:      connect.NewClient[PlayRequest, PlayResponse](httpClient, baseURL+ListenerServicePlayProcedure, opts...),
		getQueue:  connect.NewClient[SessionRequest, GetQueueResponse](httpClient, baseURL+ListenerServiceGetQueueProcedure, opts...),
		subscribe: connect.NewClient[SubscribeNotificationsRequest, Notification](httpClient, baseURL+ListenerServiceSubscribeNotificationsProcedure, opts...),
	}
}

// Play calls ListenerService.Play.
func (c *ListenerServiceClient) Play(ctx context.Context, req *connect.Request[PlayRequest]) (*connect.Response[PlayResponse], error) {
	return c.play.CallUnary(ctx, req)
}

// GetQueue calls ListenerService.GetQueue.
func (c *ListenerServiceClient) GetQueue(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[GetQueueResponse], error) {
	return c.getQueue.CallUnary(ctx, req)
}

// SubscribeNotifications calls ListenerService.SubscribeNotifications.
func (c *ListenerServiceClient) SubscribeNotifications(ctx context.Context, req *connect.Request[SubscribeNotificationsRequest]) (*connect.ServerStreamForClient[Notification], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
