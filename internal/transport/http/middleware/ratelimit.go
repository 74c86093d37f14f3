package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskscore/internal/requestctx"
	"taskscore/internal/transport/http/api"
	"taskscore/internal/transport/http/shared"
)

// RateCounter counts hits on key within a fixed window starting at the
// first hit. It returns the running count and the time until the window
// closes.
type RateCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

type RateLimitOption func(*limiter)

// WithCounter swaps the in-process counter for a shared one, so replicas
// enforce a single budget.
func WithCounter(counter RateCounter) RateLimitOption {
	return func(l *limiter) {
		if counter != nil {
			l.counter = counter
		}
	}
}

type limiter struct {
	scope   string
	limit   int
	window  time.Duration
	counter RateCounter
}

func newLimiter(scope string, limit int, window time.Duration, opts []RateLimitOption) *limiter {
	l := &limiter{scope: scope, limit: limit, window: window, counter: NewMemoryCounter()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RateLimit caps requests per caller per window. Authenticated callers are
// keyed by tenant and user, everyone else by client IP.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newLimiter("all", limit, window, opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit gives reviews, proof uploads and score
// recalculation half of the general budget, counted separately.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newLimiter("sensitive", max(baseLimit/2, 1), window, opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSensitiveMutation(r) && !l.allow(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID
	}
	return "ip:" + shared.ClientIP(r)
}

func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	ctx := r.Context()
	key := l.scope + ":" + callerKey(r)

	count, resetIn, err := l.counter.Hit(ctx, key, l.window)
	if err != nil {
		// fail open
		requestctx.Logger(ctx).Warn("rate counter unavailable", "scope", l.scope, "err", err)
		return true
	}

	resetSec := ceilSeconds(resetIn)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(l.limit-count, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
	if count <= l.limit {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(resetSec, 1)))
	requestctx.Logger(ctx).Warn("rate limit exceeded",
		"scope", l.scope,
		"key", key,
		"method", r.Method,
		"path", r.URL.Path,
		"limit", l.limit,
	)
	api.Fail(w, http.StatusTooManyRequests, api.CodeRateLimited, "too many requests", GetRequestID(ctx))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func isSensitiveMutation(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return false
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case strings.HasPrefix(path, "/performance/scores/") && strings.HasSuffix(path, "/recalculate"):
		return true
	case strings.HasPrefix(path, "/tasks/") && strings.HasSuffix(path, "/review"):
		return true
	case strings.HasPrefix(path, "/tasks/") && strings.HasSuffix(path, "/proofs"):
		return true
	}
	return false
}

const maxTrackedKeys = 10000

// MemoryCounter is a per-process RateCounter.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*counterWindow
}

type counterWindow struct {
	count int
	ends  time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now, windows: map[string]*counterWindow{}}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.windows) >= maxTrackedKeys {
		for k, cw := range m.windows {
			if !now.Before(cw.ends) {
				delete(m.windows, k)
			}
		}
	}
	cw, ok := m.windows[key]
	if !ok || !now.Before(cw.ends) {
		cw = &counterWindow{ends: now.Add(window)}
		m.windows[key] = cw
	}
	cw.count++
	return cw.count, cw.ends.Sub(now), nil
}
