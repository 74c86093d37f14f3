package notificationshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"taskscore/internal/domain/auth"
	"taskscore/internal/domain/notifications"
	"taskscore/internal/transport/http/middleware"
)

type fakeInbox struct {
	items  []notifications.Notification
	read   map[string]bool
	offset int
}

func (f *fakeInbox) List(_ context.Context, _, _ string, limit, offset int) ([]notifications.Notification, error) {
	f.offset = offset
	end := min(offset+limit, len(f.items))
	if offset >= end {
		return []notifications.Notification{}, nil
	}
	return f.items[offset:end], nil
}

func (f *fakeInbox) Count(context.Context, string, string) (int, error) {
	return len(f.items), nil
}

func (f *fakeInbox) MarkRead(_ context.Context, _, _, notificationID string) error {
	for _, item := range f.items {
		if item.ID == notificationID {
			f.read[notificationID] = true
			return nil
		}
	}
	return notifications.ErrNotificationNotFound
}

func newRouter(inbox *fakeInbox, authenticated bool) http.Handler {
	r := chi.NewRouter()
	if authenticated {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "u1", TenantID: "t1"})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	NewHandler(inbox).RegisterRoutes(r)
	return r
}

func TestListReturnsPageMeta(t *testing.T) {
	inbox := &fakeInbox{read: map[string]bool{}, items: []notifications.Notification{
		{ID: "n1", Type: notifications.TypeTaskAssigned},
		{ID: "n2", Type: notifications.TypeTaskApproved},
		{ID: "n3", Type: notifications.TypeScoreUpdated},
	}}

	rec := httptest.NewRecorder()
	newRouter(inbox, true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	var out struct {
		Data []notifications.Notification `json:"data"`
		Meta struct {
			Total      int `json:"total"`
			Page       int `json:"page"`
			TotalPages int `json:"totalPages"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 2, inbox.offset)
	require.Len(t, out.Data, 1)
	require.Equal(t, "n3", out.Data[0].ID)
	require.Equal(t, 2, out.Meta.Page)
	require.Equal(t, 2, out.Meta.TotalPages)
}

func TestMarkRead(t *testing.T) {
	inbox := &fakeInbox{read: map[string]bool{}, items: []notifications.Notification{{ID: "n1"}}}
	router := newRouter(inbox, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/n1/read", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, inbox.read["n1"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/missing/read", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&fakeInbox{}, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
