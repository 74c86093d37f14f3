package performancehandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"taskscore/internal/domain/access"
	"taskscore/internal/domain/audit"
	"taskscore/internal/domain/auth"
	"taskscore/internal/domain/core"
	"taskscore/internal/domain/notifications"
	"taskscore/internal/domain/performance"
	"taskscore/internal/platform/jobs"
	"taskscore/internal/platform/metrics"
	"taskscore/internal/transport/http/api"
	"taskscore/internal/transport/http/middleware"
	"taskscore/internal/transport/http/shared"
)

const (
	defaultBatchTimeout = 2 * time.Minute
	maxBatchTimeout     = 15 * time.Minute
)

type ScoreService interface {
	CurrentPeriod() performance.Period
	LiveScore(ctx context.Context, tenantID, employeeID string) (performance.EmployeeScore, error)
	History(ctx context.Context, tenantID, employeeID string, limit int) ([]performance.EmployeeScore, error)
	Scorecard(ctx context.Context, tenantID, employeeID string) ([]byte, error)
	Calculate(ctx context.Context, tenantID, employeeID string, period performance.Period) (performance.EmployeeScore, bool, error)
	CalculateAll(ctx context.Context, tenantID string, period performance.Period, deadline time.Time) (performance.BatchResult, error)
	Leaderboard(ctx context.Context, tenantID string, filter performance.LeaderboardFilter) ([]performance.RankedEntry, error)
}

type Resolver interface {
	Actor(ctx context.Context, user auth.UserContext) (access.Actor, error)
	For(ctx context.Context, actor access.Actor, employeeID string) (access.Capability, error)
}

type JobRunner interface {
	RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error)
	Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) bool
}

type Directory interface {
	GetEmployee(ctx context.Context, tenantID, employeeID string) (*core.Employee, error)
}

type AuditLog interface {
	Record(ctx context.Context, tenantID, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

type Notifier interface {
	Create(ctx context.Context, tenantID, userID, ntype, title, body string) error
}

type Handler struct {
	Service   ScoreService
	Access    Resolver
	Jobs      JobRunner
	Directory Directory
	Perms     middleware.PermissionStore
	Audit     AuditLog
	Notify    Notifier
	Metrics   *metrics.Collector
}

func NewHandler(service ScoreService, resolver Resolver, jobRunner JobRunner, directory Directory, perms middleware.PermissionStore, auditLog AuditLog, notify Notifier, collector *metrics.Collector) *Handler {
	return &Handler{
		Service:   service,
		Access:    resolver,
		Jobs:      jobRunner,
		Directory: directory,
		Perms:     perms,
		Audit:     auditLog,
		Notify:    notify,
		Metrics:   collector,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPerformanceRecalculate, h.Perms)).Post("/scores/recalculate", h.handleRecalculateAll)
		r.With(middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)).Get("/scores/{employeeID}", h.handleLiveScore)
		r.With(middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)).Get("/scores/{employeeID}/history", h.handleHistory)
		r.With(middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)).Get("/scores/{employeeID}/scorecard.pdf", h.handleScorecard)
		r.With(middleware.RequirePermission(auth.PermPerformanceRecalculate, h.Perms)).Post("/scores/{employeeID}/recalculate", h.handleRecalculate)
		r.With(middleware.RequirePermission(auth.PermLeaderboardRead, h.Perms)).Get("/leaderboard", h.handleLeaderboard)
	})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required", middleware.GetRequestID(r.Context()))
		return access.Actor{}, false
	}
	actor, err := h.Access.Actor(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return access.Actor{}, false
	}
	return actor, true
}

// authorize admits the employee themselves, anyone above them in the
// reporting chain, and HR. With manage set the employee alone is not enough.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, actor access.Actor, employeeID string, manage bool) bool {
	caps, err := h.Access.For(r.Context(), actor, employeeID)
	if err != nil {
		writeError(w, r, err)
		return false
	}
	allowed := caps.CanReview() || (!manage && caps.IsAssignee())
	if !allowed {
		api.Fail(w, http.StatusForbidden, api.CodeForbidden, "not permitted to access this employee's score", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func (h *Handler) handleLiveScore(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	if !h.authorize(w, r, actor, employeeID, false) {
		return
	}
	score, err := h.Service.LiveScore(r.Context(), actor.TenantID, employeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, score, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	if !h.authorize(w, r, actor, employeeID, false) {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "limit", Reason: "must be a positive integer"}})
			return
		}
		limit = parsed
	}
	history, err := h.Service.History(r.Context(), actor.TenantID, employeeID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, history, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleScorecard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	if !h.authorize(w, r, actor, employeeID, false) {
		return
	}
	pdf, err := h.Service.Scorecard(r.Context(), actor.TenantID, employeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scorecard-"+employeeID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		slog.Warn("scorecard write failed", "employeeId", employeeID, "err", err)
	}
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")
	if !h.authorize(w, r, actor, employeeID, true) {
		return
	}
	period, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}

	score, created, err := h.Service.Calculate(r.Context(), actor.TenantID, employeeID, period)
	failed := 0
	if err != nil {
		failed = 1
	}
	h.Metrics.ScoreRun(failed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !created {
		api.Success(w, score, requestID)
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), actor.TenantID, actor.UserID, audit.ActionScoreCalculate, audit.EntityScore, score.ID, requestID, shared.ClientIP(r), nil, score); err != nil {
			slog.Warn("score audit failed", "employeeId", employeeID, "err", err)
		}
	}
	h.notifyScore(r.Context(), actor.TenantID, score)
	api.Success(w, score, requestID)
}

func (h *Handler) handleRecalculateAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	if !actor.IsHR() {
		api.Fail(w, http.StatusForbidden, api.CodeForbidden, "only HR may recalculate every score", requestID)
		return
	}
	period, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}
	timeout, ok := parseTimeout(w, r)
	if !ok {
		return
	}

	ip := shared.ClientIP(r)
	run := func(ctx context.Context) (any, error) {
		result, err := h.Service.CalculateAll(ctx, actor.TenantID, period, time.Now().Add(timeout))
		if err != nil {
			h.Metrics.ScoreRun(0)
			return nil, err
		}
		h.Metrics.ScoreRun(result.Failed)
		if h.Audit != nil {
			summary := map[string]any{"succeeded": result.Succeeded, "failed": result.Failed, "skipped": len(result.Skipped)}
			if err := h.Audit.Record(ctx, actor.TenantID, actor.UserID, audit.ActionScoreBatch, audit.EntityScore, period.Start.Format("2006-01-02"), requestID, ip, nil, summary); err != nil {
				slog.Warn("score batch audit failed", "err", err)
			}
		}
		return result, nil
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if !h.Jobs.Enqueue(jobs.JobScoreRecalculation, actor.TenantID, run) {
			api.Fail(w, http.StatusServiceUnavailable, api.CodeRateLimited, "job queue is full, retry later", requestID)
			return
		}
		api.Accepted(w, map[string]any{"queued": true, "period": period}, requestID)
		return
	}

	out, err := h.Jobs.RunNow(r.Context(), jobs.JobScoreRecalculation, actor.TenantID, run)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, out, requestID)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	filter := performance.LeaderboardFilter{DepartmentID: strings.TrimSpace(query.Get("departmentId"))}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "limit", Reason: "must be a positive integer"}})
			return
		}
		filter.Limit = limit
	}

	entries, err := h.Service.Leaderboard(r.Context(), actor.TenantID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, entries, requestID)
}

// parsePeriod reads periodStart and periodEnd (YYYY-MM-DD, end exclusive),
// falling back to the current month when both are absent.
func (h *Handler) parsePeriod(w http.ResponseWriter, r *http.Request) (performance.Period, bool) {
	query := r.URL.Query()
	rawStart := strings.TrimSpace(query.Get("periodStart"))
	rawEnd := strings.TrimSpace(query.Get("periodEnd"))
	if rawStart == "" && rawEnd == "" {
		return h.Service.CurrentPeriod(), true
	}

	v := shared.NewValidator()
	v.Required("periodStart", rawStart, "is required when periodEnd is set")
	v.Required("periodEnd", rawEnd, "is required when periodStart is set")
	var start, end time.Time
	if rawStart != "" {
		start, _ = v.Date("periodStart", rawStart)
	}
	if rawEnd != "" {
		end, _ = v.Date("periodEnd", rawEnd)
	}
	v.Interval("periodStart", start, "periodEnd", end)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return performance.Period{}, false
	}
	return performance.Period{Start: start.UTC(), End: end.UTC()}, true
}

func parseTimeout(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("timeout"))
	if raw == "" {
		return defaultBatchTimeout, true
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil || timeout <= 0 || timeout > maxBatchTimeout {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{
			Field:  "timeout",
			Reason: fmt.Sprintf("must be a duration between 1s and %s", maxBatchTimeout),
		}})
		return 0, false
	}
	return timeout, true
}

func (h *Handler) notifyScore(ctx context.Context, tenantID string, score performance.EmployeeScore) {
	if h.Notify == nil || h.Directory == nil {
		return
	}
	emp, err := h.Directory.GetEmployee(ctx, tenantID, score.EmployeeID)
	if err != nil {
		slog.Warn("score notification lookup failed", "employeeId", score.EmployeeID, "err", err)
		return
	}
	body := fmt.Sprintf("Your score for %s is %.2f (grade %s).", score.PeriodStart.Format("January 2006"), score.TotalScore, score.Grade)
	if err := h.Notify.Create(ctx, tenantID, emp.UserID, notifications.TypeScoreUpdated, "Performance score updated", body); err != nil {
		slog.Warn("score notification failed", "employeeId", score.EmployeeID, "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, access.ErrNoEmployeeProfile):
		api.Fail(w, http.StatusForbidden, api.CodeForbidden, err.Error(), requestID)
	case errors.Is(err, performance.ErrEmployeeNotFound), errors.Is(err, performance.ErrScoreNotFound):
		api.Fail(w, http.StatusNotFound, api.CodeNotFound, err.Error(), requestID)
	case errors.Is(err, performance.ErrInvalidPeriod):
		api.Fail(w, http.StatusBadRequest, api.CodeValidation, err.Error(), requestID)
	case errors.Is(err, performance.ErrCorruptData):
		api.Fail(w, http.StatusConflict, api.CodeConflict, err.Error(), requestID)
	default:
		slog.Error("performance request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, api.CodeInternal, "internal server error", requestID)
	}
}
