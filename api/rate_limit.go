package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"go.uber.org/zap"

	"github.com/linesmerrill/civil-defense-api/config"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client ip
type RateLimiter struct {
	sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	metrics  *Metrics
}

// NewRateLimiter allows perMinute requests per client ip each minute.
// Visitors idle for longer than ttl are forgotten by Cleanup.
func NewRateLimiter(perMinute int, ttl time.Duration, m *Metrics) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		ttl:      ttl,
		metrics:  m,
	}
}

func (l *RateLimiter) getVisitor(ip string) *rate.Limiter {
	l.Lock()
	defer l.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup drops idle visitors every interval until ctx is done
func (l *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *RateLimiter) sweep() {
	l.Lock()
	defer l.Unlock()
	for ip, v := range l.visitors {
		if time.Since(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
		}
	}
}

// Limit answers 429 once the client ip is over its budget
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			config.ErrorStatus("failed to read client address", http.StatusInternalServerError, w, err)
			return
		}

		if !l.getVisitor(ip).Allow() {
			zap.S().Warnw("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			l.metrics.IncrementRateLimited()
			config.ErrorStatus("too many requests", http.StatusTooManyRequests, w, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
