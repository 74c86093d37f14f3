package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskscore/internal/domain/auth"
)

func noContent() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func send(h http.Handler, method, path, remoteAddr string, user *auth.UserContext) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), *user))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type fixedClock struct{ at time.Time }

func (c *fixedClock) now() time.Time { return c.at }

func TestRateLimitKeysByUserBeforeIP(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())
	user := &auth.UserContext{TenantID: "tenant-1", UserID: "user-1"}

	require.Equal(t, http.StatusNoContent, send(limited, http.MethodPost, "/api/v1/tasks", "198.51.100.11:2222", user).Code)
	// Same user from another address shares the budget.
	require.Equal(t, http.StatusTooManyRequests, send(limited, http.MethodPost, "/api/v1/tasks", "198.51.100.12:3333", user).Code)
	// Anonymous caller on that address has its own.
	require.Equal(t, http.StatusNoContent, send(limited, http.MethodPost, "/api/v1/tasks", "198.51.100.12:3333", nil).Code)
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())

	require.Equal(t, http.StatusNoContent, send(limited, http.MethodGet, "/healthz", "203.0.113.10:4444", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, send(limited, http.MethodGet, "/healthz", "203.0.113.10:5555", nil).Code)
}

func TestRateLimitHeaders(t *testing.T) {
	clock := &fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	counter := NewMemoryCounter()
	counter.now = clock.now
	limited := RateLimit(2, time.Minute, WithCounter(counter))(noContent())

	rec := send(limited, http.MethodGet, "/api/v1/tasks", "192.0.2.30:1234", nil)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", rec.Header().Get("X-RateLimit-Reset"))

	clock.at = clock.at.Add(45 * time.Second)
	send(limited, http.MethodGet, "/api/v1/tasks", "192.0.2.30:1234", nil)
	rec = send(limited, http.MethodGet, "/api/v1/tasks", "192.0.2.30:1234", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "15", rec.Header().Get("Retry-After"))
}

func TestMemoryCounterWindowResets(t *testing.T) {
	clock := &fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	counter := NewMemoryCounter()
	counter.now = clock.now
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, _, err := counter.Hit(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, count)
	}
	clock.at = clock.at.Add(time.Minute)
	count, resetIn, err := counter.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, time.Minute, resetIn)
}

type brokenCounter struct{}

func (brokenCounter) Hit(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("redis: connection refused")
}

func TestRateLimitFailsOpenWhenCounterErrors(t *testing.T) {
	limited := RateLimit(1, time.Minute, WithCounter(brokenCounter{}))(noContent())
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusNoContent, send(limited, http.MethodGet, "/api/v1/tasks", "192.0.2.1:1", nil).Code)
	}
}

func TestSensitiveMutationRateLimitScope(t *testing.T) {
	limited := SensitiveMutationRateLimit(4, time.Minute)(noContent())

	for i := 0; i < 6; i++ {
		rec := send(limited, http.MethodGet, "/api/v1/performance/leaderboard", "198.51.100.40:8888", nil)
		require.Equal(t, http.StatusNoContent, rec.Code, "read request %d", i+1)
	}

	reviewer := &auth.UserContext{TenantID: "tenant-1", UserID: "hr-1"}
	for i := 1; i <= 3; i++ {
		rec := send(limited, http.MethodPost, "/api/v1/tasks/t"+strconv.Itoa(i)+"/review", "198.51.100.41:9999", reviewer)
		if i < 3 {
			require.Equal(t, http.StatusNoContent, rec.Code, "review %d", i)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

func TestIsSensitiveMutation(t *testing.T) {
	cases := map[string]bool{
		"/api/v1/performance/scores/recalculate":    true,
		"/api/v1/performance/scores/e1/recalculate": true,
		"/api/v1/tasks/t1/proofs":                   true,
		"/api/v1/tasks/t1/review":                   true,
		"/api/v1/tasks/t1/transition":               false,
		"/api/v1/tasks":                             false,
	}
	for path, want := range cases {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		require.Equal(t, want, isSensitiveMutation(req), path)
	}
	require.False(t, isSensitiveMutation(httptest.NewRequest(http.MethodGet, "/api/v1/tasks/t1/proofs", nil)))
}
