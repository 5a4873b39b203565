package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL  = 10 * time.Minute
	limiterPruneLen = 1024
)

// ownerLimiter hands out one token bucket per owner for command execution.
// A nil *ownerLimiter allows everything.
type ownerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func newOwnerLimiter(perMinute, burst int) *ownerLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ownerLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ownerLimiter) Allow(owner string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	entry, ok := l.limiters[owner]
	if !ok {
		if len(l.limiters) >= limiterPruneLen {
			l.pruneLocked(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[owner] = entry
	}
	entry.lastUsed = now
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func (l *ownerLimiter) pruneLocked(now time.Time) {
	for owner, e := range l.limiters {
		if now.Sub(e.lastUsed) > limiterIdleTTL {
			delete(l.limiters, owner)
		}
	}
}
