// Package ratelimit provides a sliding-window request limiter for the
// endpoints that fan out to remote registries. The window is per key, in
// memory: sessions are single-instance, so the limiter is too.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"intake-gateway/pkg/requestcontext"
)

// Result reports one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter admits up to limit requests per key within a sliding window.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
}

// New creates a Limiter. A non-positive limit admits everything.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*slidingWindow),
	}
}

// Allow records and admits a request for key, or rejects it when the
// window is full.
func (l *Limiter) Allow(key string, now time.Time) Result {
	if l.limit <= 0 {
		return Result{Allowed: true, Remaining: 1, ResetAt: now.Add(l.window)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sw := l.buckets[key]
	if sw == nil {
		sw = &slidingWindow{}
		l.buckets[key] = sw
	}
	sw.cleanup(now.Add(-l.window))

	if len(sw.timestamps) >= l.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: sw.timestamps[0].Add(l.window)}
	}

	sw.timestamps = append(sw.timestamps, now)
	return Result{
		Allowed:   true,
		Remaining: l.limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(l.window),
	}
}

// Reset clears the window for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func (sw *slidingWindow) cleanup(cutoff time.Time) {
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Middleware rejects over-limit requests with 429, keyed by client IP.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			res := l.Allow(requestcontext.ClientIP(ctx), requestcontext.Now(ctx))
			if !res.Allowed {
				retry := int(time.Until(res.ResetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, "demasiadas solicitudes; intente más tarde", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
