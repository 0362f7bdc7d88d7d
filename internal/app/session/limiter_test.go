package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestLimiter_Burst(t *testing.T) {
	l := newRequestLimiter(60, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))

	// Requesters are limited independently
	assert.True(t, l.Allow("u2"))

	// One token per second at 60/min
	now = now.Add(time.Second)
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
}

func TestRequestLimiter_Prune(t *testing.T) {
	l := newRequestLimiter(60, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i <= limiterPruneAbove; i++ {
		l.Allow(fmt.Sprintf("u%d", i))
	}
	assert.Equal(t, limiterPruneAbove+1, l.size())

	now = now.Add(limiterIdleTTL + time.Minute)
	l.Allow("fresh")
	assert.Equal(t, 1, l.size())
}
