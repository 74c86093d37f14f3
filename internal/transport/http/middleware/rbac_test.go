package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"taskscore/internal/domain/auth"
)

type stubPermissions struct {
	grants map[string]bool
	err    error
	calls  int
}

func (s *stubPermissions) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.grants[roleID+"/"+permission], nil
}

func serveWithPermission(store PermissionStore, user *auth.UserContext) *httptest.ResponseRecorder {
	handler := RequirePermission(auth.PermTasksReview, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/tasks/t1/review", nil)
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), *user))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequirePermission(t *testing.T) {
	manager := auth.UserContext{UserID: "u1", TenantID: "t1", RoleID: "r-manager", RoleName: auth.RoleManager}
	store := &stubPermissions{grants: map[string]bool{"r-manager/" + auth.PermTasksReview: true}}

	rec := serveWithPermission(store, &manager)
	require.Equal(t, http.StatusNoContent, rec.Code)

	employee := auth.UserContext{UserID: "u2", TenantID: "t1", RoleID: "r-employee", RoleName: auth.RoleEmployee}
	rec = serveWithPermission(store, &employee)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "FORBIDDEN", body.Code)
	require.Equal(t, auth.PermTasksReview, body.Details["permission"])
}

func TestRequirePermissionWithoutUser(t *testing.T) {
	store := &stubPermissions{}
	rec := serveWithPermission(store, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, store.calls)
}

func TestRequirePermissionLookupFailure(t *testing.T) {
	store := &stubPermissions{err: errors.New("db down")}
	user := auth.UserContext{UserID: "u1", RoleID: "r1"}
	rec := serveWithPermission(store, &user)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
