package notificationshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taskscore/internal/domain/notifications"
	"taskscore/internal/transport/http/api"
	"taskscore/internal/transport/http/middleware"
	"taskscore/internal/transport/http/shared"
)

type Inbox interface {
	List(ctx context.Context, tenantID, userID string, limit, offset int) ([]notifications.Notification, error)
	Count(ctx context.Context, tenantID, userID string) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, notificationID string) error
}

type Handler struct {
	Service Inbox
}

func NewHandler(service Inbox) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/{notificationID}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	total, err := h.Service.Count(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		slog.Warn("notification count failed", "err", err)
	}

	items, err := h.Service.List(r.Context(), user.TenantID, user.UserID, page.Limit, page.Offset)
	if err != nil {
		slog.Error("notification list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, api.CodeInternal, "failed to list notifications", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.List(w, items, total, page.Page, page.Limit, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	err := h.Service.MarkRead(r.Context(), user.TenantID, user.UserID, notificationID)
	if errors.Is(err, notifications.ErrNotificationNotFound) {
		api.Fail(w, http.StatusNotFound, api.CodeNotFound, err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("notification update failed", "notificationId", notificationID, "err", err)
		api.Fail(w, http.StatusInternalServerError, api.CodeInternal, "failed to update notification", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, map[string]string{"status": "read"}, middleware.GetRequestID(r.Context()))
}
