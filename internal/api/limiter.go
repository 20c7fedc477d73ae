package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"peregovorka/internal/config"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientEntry
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg config.APIRateLimitConfig) *clientLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &clientLimiter{
		limiters: make(map[string]*clientEntry),
		rps:      rate.Limit(cfg.RPS),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *clientLimiter) allow(key string) bool {
	if l.rps <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		l.sweep(now)
		e = &clientEntry{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *clientLimiter) sweep(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.limiters, k)
		}
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}
