package state

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/voicebox/internal/domain/track"
)

func newQueued(title, requesterID string) *track.QueuedTrack {
	return &track.QueuedTrack{
		Track:     track.Track{Title: title, URL: "https://example.com/" + title},
		Requester: track.Requester{ID: requesterID, Name: requesterID, Type: track.RequesterTypeUser},
	}
}

func TestSession_PushAndPopNext(t *testing.T) {
	s := New("guild-1")

	assert.Equal(t, 1, s.Push(newQueued("a", "u1")))
	assert.Equal(t, 2, s.Push(newQueued("b", "u1")))
	assert.Equal(t, 3, s.Push(newQueued("c", "u2")))
	_, ok := s.Current()
	assert.False(t, ok)

	for _, want := range []string{"a", "b", "c"} {
		qt, ok := s.PopNext()
		require.True(t, ok)
		assert.Equal(t, want, qt.Track.Title)

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Same(t, qt, cur)
	}

	_, ok = s.PopNext()
	assert.False(t, ok)

	// Current stays on the last popped track until cleared.
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "c", cur.Track.Title)

	prev := s.ClearCurrent()
	assert.Equal(t, "c", prev.Track.Title)
	_, ok = s.Current()
	assert.False(t, ok)
}

func TestSession_PendingNeverContainsCurrent(t *testing.T) {
	s := New("guild-1")
	s.Push(newQueued("a", "u1"))
	s.Push(newQueued("b", "u1"))

	cur, ok := s.PopNext()
	require.True(t, ok)

	for _, qt := range s.Snapshot(0).Upcoming {
		assert.NotSame(t, cur, qt)
	}
	assert.Equal(t, 1, s.PendingLen())
}

func TestSession_Snapshot(t *testing.T) {
	tests := []struct {
		name          string
		pending       int
		limit         int
		wantUpcoming  int
		wantTruncated bool
		wantRemaining int
	}{
		{
			name:         "empty queue",
			pending:      0,
			limit:        10,
			wantUpcoming: 0,
		},
		{
			name:         "fewer than limit",
			pending:      3,
			limit:        10,
			wantUpcoming: 3,
		},
		{
			name:         "exactly limit",
			pending:      10,
			limit:        10,
			wantUpcoming: 10,
		},
		{
			name:          "more than limit",
			pending:       13,
			limit:         10,
			wantUpcoming:  10,
			wantTruncated: true,
			wantRemaining: 3,
		},
		{
			name:         "no limit",
			pending:      25,
			limit:        0,
			wantUpcoming: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("guild-1")
			for i := 0; i < tt.pending; i++ {
				s.Push(newQueued(fmt.Sprintf("t%d", i), "u1"))
			}

			snap := s.Snapshot(tt.limit)
			assert.Equal(t, "guild-1", snap.SessionID)
			assert.Len(t, snap.Upcoming, tt.wantUpcoming)
			assert.Equal(t, tt.wantTruncated, snap.Truncated)
			assert.Equal(t, tt.wantRemaining, snap.Remaining)
			assert.Equal(t, tt.pending, snap.PendingCount())
			for i, qt := range snap.Upcoming {
				assert.Equal(t, fmt.Sprintf("t%d", i), qt.Track.Title)
			}
		})
	}
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s := New("guild-1")
	s.Push(newQueued("a", "u1"))
	s.Push(newQueued("b", "u1"))

	snap := s.Snapshot(10)
	snap.Upcoming[0] = newQueued("mutated", "u9")
	snap.Upcoming = snap.Upcoming[:1]

	again := s.Snapshot(10)
	require.Len(t, again.Upcoming, 2)
	assert.Equal(t, "a", again.Upcoming[0].Track.Title)
}

func TestSession_Clear(t *testing.T) {
	s := New("guild-1")
	s.Push(newQueued("a", "u1"))
	s.Push(newQueued("b", "u1"))
	s.Push(newQueued("c", "u1"))
	_, _ = s.PopNext()

	removed := s.Clear()
	assert.Len(t, removed, 2)
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, s.PendingLen())
	assert.True(t, s.Snapshot(10).IsEmpty())
	assert.Equal(t, 0, s.Listener(track.Requester{ID: "u1"}).PendingTracks)
}

func TestSession_ListenerPendingTracks(t *testing.T) {
	s := New("guild-1")
	u1 := track.Requester{ID: "u1", Name: "User 1"}

	s.Push(newQueued("a", "u1"))
	s.Push(newQueued("b", "u1"))
	s.Push(newQueued("c", "u2"))
	assert.Equal(t, 2, s.Listener(u1).PendingTracks)

	_, _ = s.PopNext()
	assert.Equal(t, 1, s.Listener(u1).PendingTracks)
	assert.Equal(t, 2, s.Listener(u1).TotalRequests)

	// Returned records are copies
	l := s.Listener(u1)
	l.PendingTracks = 42
	assert.Equal(t, 1, s.Listener(u1).PendingTracks)
	assert.Len(t, s.Listeners(), 2)
}

func TestSession_GetAllTracks(t *testing.T) {
	s := New("guild-1")
	s.Push(newQueued("a", "u1"))
	s.Push(newQueued("b", "u1"))
	_, _ = s.PopNext()

	all := s.GetAllTracks()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Track.Title)
	assert.Equal(t, "b", all[1].Track.Title)
}

func TestSession_Connection(t *testing.T) {
	s := New("guild-1")
	assert.False(t, s.IsConnected())

	s.SetConnected(true, "chan-1")
	assert.True(t, s.IsConnected())
	assert.Equal(t, "chan-1", s.ChannelRef())

	s.SetConnected(false, "")
	assert.False(t, s.IsConnected())
	assert.Equal(t, "", s.ChannelRef())
}
