package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/handler"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/session"
	"golang.org/x/time/rate"
)

const (
	limiterTTL   = 10 * time.Minute
	sweepPeriod  = time.Minute
	defaultRPS   = 2
	defaultBurst = 5
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// SendLimiter is a per-user token bucket for message sends. Idle buckets are
// swept lazily on access.
type SendLimiter struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewSendLimiter(rps float64, burst int) *SendLimiter {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &SendLimiter{
		m:     make(map[string]*limiterEntry),
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

func (p *SendLimiter) Allow(key string) bool {
	return p.get(key).AllowN(p.now(), 1)
}

func (p *SendLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Sub(p.lastSweep) >= sweepPeriod {
		cutoff := now.Add(-limiterTTL)
		for k, e := range p.m {
			if e.lastSeen.Before(cutoff) {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

// Limit rejects requests over the caller's budget with 429. It must run
// after RequireAuth; requests without a session fall back to the client IP.
func (p *SendLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.RealIP()
		if sess, err := session.From(c); err == nil {
			key = sess.UserID
		}
		if !p.Allow(key) {
			return handler.RespondError(c, service.ErrRateLimited)
		}
		return next(c)
	}
}
