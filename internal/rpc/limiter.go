package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long an origin's limiter survives without calls.
const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// originLimiter rate limits capability calls per origin domain.
type originLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*limiterEntry
	now      func() time.Time
}

// newOriginLimiter returns nil when perSecond is not positive, which
// disables limiting.
func newOriginLimiter(perSecond float64, burst int) *originLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &originLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Allow reports whether origin may make another call now.
func (l *originLimiter) Allow(origin string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	e, ok := l.visitors[origin]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[origin] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweep drops limiters of origins that went quiet.
func (l *originLimiter) sweep(now time.Time) {
	for id, e := range l.visitors {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(l.visitors, id)
		}
	}
}
