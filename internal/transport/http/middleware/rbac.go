package middleware

import (
	"context"
	"net/http"

	"taskscore/internal/requestctx"
	"taskscore/internal/transport/http/api"
)

// PermissionStore answers whether a role holds a named permission.
type PermissionStore interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

// RequirePermission rejects callers whose role lacks permission. Lookup
// failures are reported as 500 rather than a denial.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)
			user, ok := GetUser(ctx)
			if !ok {
				api.Fail(w, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required", requestID)
				return
			}

			allowed, err := store.HasPermission(ctx, user.RoleID, permission)
			if err != nil {
				requestctx.Logger(ctx).Error("permission lookup failed",
					"permission", permission, "roleId", user.RoleID, "err", err)
				api.Fail(w, http.StatusInternalServerError, api.CodeInternal, "permission check failed", requestID)
				return
			}
			if !allowed {
				requestctx.Logger(ctx).Info("permission denied",
					"permission", permission, "userId", user.UserID, "role", user.RoleName)
				api.FailWithDetails(w, http.StatusForbidden, api.CodeForbidden, "missing permission "+permission,
					map[string]any{"permission": permission}, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
