package connect

import (
	"time"

	"github.com/osa030/voicebox/internal/app/notification"
	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/app/session/state"
)

// Service and procedure names.
const (
	AdminServiceName    = "voicebox.v1.AdminService"
	ListenerServiceName = "voicebox.v1.ListenerService"

	AdminServiceListSessionsProcedure = "/" + AdminServiceName + "/ListSessions"
	AdminServiceGetStatusProcedure    = "/" + AdminServiceName + "/GetStatus"
	AdminServiceGetQueueProcedure     = "/" + AdminServiceName + "/GetQueue"
	AdminServiceSkipProcedure         = "/" + AdminServiceName + "/Skip"
	AdminServiceStopProcedure         = "/" + AdminServiceName + "/Stop"
	AdminServicePauseProcedure        = "/" + AdminServiceName + "/Pause"
	AdminServiceResumeProcedure       = "/" + AdminServiceName + "/Resume"

	ListenerServicePlayProcedure                   = "/" + ListenerServiceName + "/Play"
	ListenerServiceGetQueueProcedure               = "/" + ListenerServiceName + "/GetQueue"
	ListenerServiceSubscribeNotificationsProcedure = "/" + ListenerServiceName + "/SubscribeNotifications"
)

// TrackInfo is the wire form of a queued track.
type TrackInfo = notification.TrackInfo

// Notification is the wire form of a session notification.
type Notification = notification.Notification

// ListSessionsRequest lists every live session.
type ListSessionsRequest struct{}

// ListSessionsResponse holds the live sessions, oldest first.
type ListSessionsResponse struct {
	Sessions []*SessionStatus `json:"sessions"`
}

// SessionRequest addresses a single session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SessionStatus describes one session.
type SessionStatus struct {
	SessionID   string     `json:"session_id"`
	State       string     `json:"state"`
	Paused      bool       `json:"paused"`
	Connected   bool       `json:"connected"`
	ChannelID   string     `json:"channel_id,omitempty"`
	Current     *TrackInfo `json:"current,omitempty"`
	QueueLength int        `json:"queue_length"`
	Listeners   int        `json:"listeners"`
	TimerArmed  bool       `json:"timer_armed"`
	CreatedAt   string     `json:"created_at"`
}

// GetStatusResponse holds one session's status.
type GetStatusResponse struct {
	Status *SessionStatus `json:"status"`
}

// GetQueueResponse is a read-only view of a session queue.
type GetQueueResponse struct {
	Current   *TrackInfo   `json:"current,omitempty"`
	Upcoming  []*TrackInfo `json:"upcoming"`
	Remaining int          `json:"remaining"`
}

// ActionResponse reports the outcome of a control operation.
type ActionResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// PlayRequest requests a track into a voice channel.
type PlayRequest struct {
	SessionID     string `json:"session_id"`
	ChannelID     string `json:"channel_id"`
	Query         string `json:"query"`
	RequesterID   string `json:"requester_id"`
	RequesterName string `json:"requester_name"`
}

// PlayResponse reports the outcome of a play request.
type PlayResponse struct {
	Success  bool       `json:"success"`
	Code     string     `json:"code,omitempty"`
	Message  string     `json:"message"`
	Track    *TrackInfo `json:"track,omitempty"`
	Position int        `json:"position"`
	Started  bool       `json:"started"`
}

// SubscribeNotificationsRequest subscribes to one session, or to every
// session when SessionID is empty.
type SubscribeNotificationsRequest struct {
	SessionID string `json:"session_id"`
}

func toSessionStatus(st playback.Status) *SessionStatus {
	return &SessionStatus{
		SessionID:   st.SessionID,
		State:       st.State.String(),
		Paused:      st.Paused,
		Connected:   st.Connected,
		ChannelID:   st.ChannelRef,
		Current:     notification.NewTrackInfo(st.Current),
		QueueLength: st.QueueLength,
		Listeners:   st.Listeners,
		TimerArmed:  st.TimerArmed,
		CreatedAt:   st.CreatedAt.Format(time.RFC3339),
	}
}

func toQueueResponse(s state.Snapshot) *GetQueueResponse {
	resp := &GetQueueResponse{
		Current:   notification.NewTrackInfo(s.Current),
		Upcoming:  make([]*TrackInfo, 0, len(s.Upcoming)),
		Remaining: s.Remaining,
	}
	for _, qt := range s.Upcoming {
		resp.Upcoming = append(resp.Upcoming, notification.NewTrackInfo(qt))
	}
	return resp
}
