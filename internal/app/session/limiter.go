package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterPruneAbove = 1024
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// requestLimiter rate-limits play requests per requester.
type requestLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
	now     func() time.Time
}

func newRequestLimiter(perMinute float64, burst int) *requestLimiter {
	if burst < 1 {
		burst = 1
	}
	return &requestLimiter{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow reports whether requesterID may make a request now.
func (l *requestLimiter) Allow(requesterID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.entries) > limiterPruneAbove {
		l.pruneLocked(now)
	}

	e, ok := l.entries[requesterID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[requesterID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *requestLimiter) pruneLocked(now time.Time) {
	for id, e := range l.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.entries, id)
		}
	}
}

func (l *requestLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
