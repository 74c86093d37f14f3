package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"taskscore/internal/domain/audit"
	"taskscore/internal/domain/auth"
	"taskscore/internal/requestctx"
	"taskscore/internal/transport/http/api"
	"taskscore/internal/transport/http/middleware"
	"taskscore/internal/transport/http/shared"
)

const maxExportRows = 5000

type EventLog interface {
	Count(ctx context.Context, tenantID string, filter audit.Filter) (int, error)
	List(ctx context.Context, tenantID string, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Service EventLog
	Perms   middleware.PermissionStore
}

func NewHandler(service EventLog, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/events", h.handleListEvents)
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/events/export", h.handleExportEvents)
	})
}

// filterFromQuery reads the list filters. since and until accept a date or
// an RFC3339 timestamp; until is exclusive.
func filterFromQuery(r *http.Request) (audit.Filter, *shared.Validator) {
	query := r.URL.Query()
	v := shared.NewValidator()
	filter := audit.Filter{
		Action:     strings.TrimSpace(query.Get("action")),
		EntityType: strings.TrimSpace(query.Get("entityType")),
		EntityID:   strings.TrimSpace(query.Get("entityId")),
		ActorUser:  strings.TrimSpace(query.Get("actorUserId")),
	}
	if raw := query.Get("since"); raw != "" {
		filter.Since, _ = v.Date("since", raw)
	}
	if raw := query.Get("until"); raw != "" {
		filter.Until, _ = v.Date("until", raw)
	}
	v.Interval("since", filter.Since, "until", filter.Until)
	return filter, v
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	user, ok := middleware.GetUser(ctx)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required", requestID)
		return
	}
	filter, v := filterFromQuery(r)
	if v.Reject(w, requestID) {
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	includeDetails := r.URL.Query().Get("includeDetails") == "true"
	total, err := h.Service.Count(ctx, user.TenantID, filter)
	if err != nil {
		requestctx.Logger(ctx).Warn("audit count failed", "err", err)
	}
	events, err := h.Service.List(ctx, user.TenantID, filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		requestctx.Logger(ctx).Error("audit list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, api.CodeInternal, "failed to list audit events", requestID)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.List(w, events, total, page.Page, page.Limit, requestID)
}

var exportHeader = []string{"id", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}

// handleExportEvents streams at most maxExportRows matching events as CSV.
func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	user, ok := middleware.GetUser(ctx)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required", requestID)
		return
	}
	filter, v := filterFromQuery(r)
	if v.Reject(w, requestID) {
		return
	}

	events, err := h.Service.List(ctx, user.TenantID, filter, false, maxExportRows, 0)
	if err != nil {
		requestctx.Logger(ctx).Error("audit export failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, api.CodeInternal, "failed to export audit events", requestID)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	_ = writer.Write(exportHeader)
	for _, evt := range events {
		_ = writer.Write([]string{
			evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID,
			evt.RequestID, evt.IP, evt.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		requestctx.Logger(ctx).Warn("audit export write failed", "rows", len(events), "err", err)
	}
}
