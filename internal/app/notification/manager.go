// Package notification fans playback notifications out to RPC subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/domain/track"
)

// Type identifies a notification.
type Type string

const (
	TypeTrackStarted  Type = "TRACK_STARTED"
	TypeTrackFailed   Type = "TRACK_FAILED"
	TypeQueueEmpty    Type = "QUEUE_EMPTY"
	TypeSessionClosed Type = "SESSION_CLOSED"
)

const sendTimeout = 500 * time.Millisecond

// TrackInfo is the wire view of a queued track.
type TrackInfo struct {
	Title           string `json:"title"`
	Artist          string `json:"artist,omitempty"`
	URL             string `json:"url"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	Duration        string `json:"duration"`
	RequesterID     string `json:"requester_id"`
	RequesterName   string `json:"requester_name"`
	AddedAt         string `json:"added_at"`
}

// NewTrackInfo converts a queued track. It returns nil for nil.
func NewTrackInfo(qt *track.QueuedTrack) *TrackInfo {
	if qt == nil {
		return nil
	}
	return &TrackInfo{
		Title:           qt.Track.Title,
		Artist:          qt.Track.Artist,
		URL:             qt.Track.DisplayURL(),
		ThumbnailURL:    qt.Track.ThumbnailURL,
		DurationSeconds: int(qt.Track.Duration / time.Second),
		Duration:        qt.Track.DurationFormatted(),
		RequesterID:     qt.Requester.ID,
		RequesterName:   qt.Requester.Name,
		AddedAt:         qt.AddedAt.Format(time.RFC3339),
	}
}

// Notification is a single event delivered to subscribers.
type Notification struct {
	ID         string     `json:"id"`
	SequenceNo uint64     `json:"sequence_no"`
	Type       Type       `json:"type"`
	SessionID  string     `json:"session_id"`
	Track      *TrackInfo `json:"track,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id        string
	sessionID string // Empty receives every session
	stream    Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
// An empty sessionID subscribes to every session.
func (m *Manager) Subscribe(stream Stream, sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:        id,
		sessionID: sessionID,
		stream:    stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s session=%s", id, sessionID)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

func (m *Manager) nextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps n and sends it to every matching subscriber.
// Each send runs in its own goroutine and is abandoned after a short timeout.
func (m *Manager) Broadcast(n *Notification) {
	n.ID = uuid.New().String()
	n.SequenceNo = m.nextSequenceNo()
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.sessionID == "" || sub.sessionID == n.SessionID {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: id=%s error=%v", s.id, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: id=%s", s.id)
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
