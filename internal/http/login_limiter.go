package httpx

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultLoginRate  = rate.Limit(1)
	defaultLoginBurst = 5
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 256
)

// LoginLimiter throttles credential submissions per client IP.
// A nil *LoginLimiter allows everything.
type LoginLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu    sync.Mutex
	byIP  map[string]*ipLimiter
	calls int
}

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows perSecond submissions per IP with the given burst.
func NewLoginLimiter(perSecond float64, burst int) *LoginLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = defaultLoginRate
	}
	if burst <= 0 {
		burst = defaultLoginBurst
	}
	return &LoginLimiter{
		limit: limit,
		burst: burst,
		now:   time.Now,
		byIP:  make(map[string]*ipLimiter),
	}
}

// Allow reports whether a submission from ip may proceed now.
func (l *LoginLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%limiterSweepEvery == 0 {
		l.sweepLocked(now)
	}

	e, ok := l.byIP[ip]
	if !ok {
		e = &ipLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (l *LoginLimiter) sweepLocked(now time.Time) {
	for ip, e := range l.byIP {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.byIP, ip)
		}
	}
}
