package taskshandler

import (
	"context"
	"fmt"
	"io"
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
	"taskscore/internal/domain/tasks"
	"taskscore/internal/platform/blob"
	"taskscore/internal/platform/metrics"
	"taskscore/internal/transport/http/api"
	"taskscore/internal/transport/http/middleware"
	"taskscore/internal/transport/http/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type TaskService interface {
	Create(ctx context.Context, actor access.Actor, in tasks.CreateInput) (tasks.Task, error)
	Get(ctx context.Context, actor access.Actor, taskID string) (tasks.Task, error)
	List(ctx context.Context, actor access.Actor, filter tasks.ListFilter) (tasks.ListResult, error)
	Stats(ctx context.Context, actor access.Actor, scope string) (tasks.Stats, error)
	Transition(ctx context.Context, actor access.Actor, taskID string, in tasks.TransitionInput) (tasks.Task, error)
	AttachProofs(ctx context.Context, actor access.Actor, taskID string, uploads []tasks.ProofUpload) (tasks.Task, error)
	ListProofs(ctx context.Context, actor access.Actor, taskID string) ([]tasks.Proof, error)
	OpenProof(ctx context.Context, actor access.Actor, taskID, proofID string) (tasks.Proof, blob.Object, error)
	Review(ctx context.Context, actor access.Actor, taskID string, in tasks.ReviewInput) (tasks.Task, error)
}

type ActorResolver interface {
	Actor(ctx context.Context, user auth.UserContext) (access.Actor, error)
}

type Directory interface {
	GetEmployee(ctx context.Context, tenantID, employeeID string) (*core.Employee, error)
}

type AuditLog interface {
	Record(ctx context.Context, tenantID, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
	Count(ctx context.Context, tenantID string, filter audit.Filter) (int, error)
	List(ctx context.Context, tenantID string, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error)
}

type Notifier interface {
	Create(ctx context.Context, tenantID, userID, ntype, title, body string) error
}

type Handler struct {
	Service     TaskService
	Actors      ActorResolver
	Directory   Directory
	Perms       middleware.PermissionStore
	Audit       AuditLog
	Notify      Notifier
	Metrics     *metrics.Collector
	Idempotency middleware.IdempotencyKeys
	Uploads     UploadLimits
}

type UploadLimits struct {
	MaxFiles     int
	MaxFileBytes int64
}

func NewHandler(service TaskService, actors ActorResolver, directory Directory, perms middleware.PermissionStore, auditLog AuditLog, notify Notifier, collector *metrics.Collector, keys middleware.IdempotencyKeys, uploads UploadLimits) *Handler {
	return &Handler{
		Service:     service,
		Actors:      actors,
		Directory:   directory,
		Perms:       perms,
		Audit:       auditLog,
		Notify:      notify,
		Metrics:     collector,
		Idempotency: keys,
		Uploads:     uploads,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTasksWrite, h.Perms), middleware.Idempotent(h.Idempotency)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/stats", h.handleStats)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/{taskID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermTasksProgress, h.Perms)).Post("/{taskID}/transition", h.handleTransition)
		r.With(middleware.RequirePermission(auth.PermTasksProgress, h.Perms)).Post("/{taskID}/proofs", h.handleAttachProofs)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/{taskID}/proofs", h.handleListProofs)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/{taskID}/proofs/{proofID}/file", h.handleDownloadProof)
		r.With(middleware.RequirePermission(auth.PermTasksReview, h.Perms)).Post("/{taskID}/review", h.handleReview)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/{taskID}/events", h.handleEvents)
	})
}

// actor resolves the caller's employee identity, writing the failure
// response itself when it cannot.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required", middleware.GetRequestID(r.Context()))
		return access.Actor{}, false
	}
	actor, err := h.Actors.Actor(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return access.Actor{}, false
	}
	return actor, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	var payload struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		AssigneeID  string `json:"assigneeId"`
		DueDate     string `json:"dueDate"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, api.CodeInvalidPayload, "invalid request payload", requestID)
		return
	}

	v := shared.NewValidator()
	v.Required("title", payload.Title, "is required")
	v.MaxLength("title", strings.TrimSpace(payload.Title), tasks.MaxTitleLength)
	v.Required("assigneeId", payload.AssigneeID, "is required")
	priority := tasks.PriorityMedium
	if strings.TrimSpace(payload.Priority) != "" {
		priority, _ = shared.OneOf(v, "priority", payload.Priority, tasks.Priorities)
	}
	var dueDate *time.Time
	if strings.TrimSpace(payload.DueDate) != "" {
		if parsed, ok := v.Date("dueDate", payload.DueDate); ok {
			dueDate = &parsed
		}
	}
	if v.Reject(w, requestID) {
		return
	}

	task, err := h.Service.Create(r.Context(), actor, tasks.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Priority:    priority,
		AssigneeID:  strings.TrimSpace(payload.AssigneeID),
		DueDate:     dueDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.record(r, actor, audit.ActionTaskCreate, task.ID, nil, task)
	h.notifyEmployee(r.Context(), actor.TenantID, task.AssigneeID, notifications.TypeTaskAssigned,
		"New task assigned", fmt.Sprintf("You have been assigned %q.", task.Title))
	api.Created(w, task, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	filter := tasks.ListFilter{View: strings.ToLower(strings.TrimSpace(query.Get("view")))}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := tasks.ParseStatus(raw)
		if !ok {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "status", Reason: "unknown status"}})
			return
		}
		filter.Status = status
	}
	page := shared.ParsePagination(r, defaultPageSize, maxPageSize)
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	result, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.List(w, result.Tasks, result.Total, page.Page, page.Limit, requestID)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	stats, err := h.Service.Stats(r.Context(), actor, strings.ToLower(strings.TrimSpace(r.URL.Query().Get("scope"))))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	task, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, task, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var payload struct {
		Status  string `json:"status"`
		Rating  *int   `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, api.CodeInvalidPayload, "invalid request payload", requestID)
		return
	}
	target, ok := tasks.ParseStatus(payload.Status)
	if !ok {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "status", Reason: "unknown status"}})
		return
	}

	task, err := h.Service.Transition(r.Context(), actor, taskID, tasks.TransitionInput{
		Target:  target,
		Rating:  payload.Rating,
		Comment: payload.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.Metrics.Transition(string(task.Status))
	h.record(r, actor, audit.ActionTaskTransition, task.ID, nil, map[string]any{"status": task.Status, "version": task.Version})
	h.afterStatusChange(r.Context(), actor, task)
	api.Success(w, task, requestID)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var payload struct {
		Decision string `json:"decision"`
		Rating   *int   `json:"rating"`
		Comment  string `json:"comment"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, api.CodeInvalidPayload, "invalid request payload", requestID)
		return
	}
	v := shared.NewValidator()
	v.Required("decision", payload.Decision, "is required")
	decision, _ := shared.OneOf(v, "decision", payload.Decision, []tasks.Decision{tasks.DecisionApprove, tasks.DecisionReject})
	if v.Reject(w, requestID) {
		return
	}
	if payload.Rating == nil {
		writeError(w, r, tasks.ErrInvalidRating)
		return
	}

	task, err := h.Service.Review(r.Context(), actor, taskID, tasks.ReviewInput{
		Decision: decision,
		Rating:   *payload.Rating,
		Comment:  payload.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.Metrics.Transition(string(task.Status))
	h.afterStatusChange(r.Context(), actor, task)
	api.Success(w, task, requestID)
}

// afterStatusChange records review audit entries and notifies whoever acts
// next on the task.
func (h *Handler) afterStatusChange(ctx context.Context, actor access.Actor, task tasks.Task) {
	switch task.Status {
	case tasks.StatusWaitingForReview:
		manager := h.managerOf(ctx, actor.TenantID, task.AssigneeID)
		h.notifyEmployee(ctx, actor.TenantID, manager, notifications.TypeTaskAwaitingReview,
			"Task awaiting review", fmt.Sprintf("%q is ready for review.", task.Title))
	case tasks.StatusApproved, tasks.StatusRejected:
		h.Metrics.Review()
		if h.Audit != nil {
			after := map[string]any{"decision": task.ReviewDecision, "rating": task.ReviewRating, "status": task.Status}
			if err := h.Audit.Record(ctx, actor.TenantID, actor.UserID, audit.ActionTaskReview, audit.EntityTask, task.ID, middleware.GetRequestID(ctx), "", nil, after); err != nil {
				slog.Warn("task review audit failed", "taskId", task.ID, "err", err)
			}
		}
		ntype, title := notifications.TypeTaskApproved, "Task approved"
		if task.Status == tasks.StatusRejected {
			ntype, title = notifications.TypeTaskRejected, "Task rejected"
		}
		body := fmt.Sprintf("%q was reviewed.", task.Title)
		if task.ReviewComment != "" {
			body += " Comment: " + task.ReviewComment
		}
		h.notifyEmployee(ctx, actor.TenantID, task.AssigneeID, ntype, title, body)
	}
}

func (h *Handler) handleAttachProofs(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	taskID := chi.URLParam(r, "taskID")

	if err := r.ParseMultipartForm(h.multipartMemory()); err != nil {
		api.Fail(w, http.StatusBadRequest, api.CodeInvalidPayload, "expected multipart form with files", requestID)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	uploads, err := h.parseProofFiles(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, api.CodeValidation, err.Error(), requestID)
		return
	}

	task, err := h.Service.AttachProofs(r.Context(), actor, taskID, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	names := make([]string, 0, len(uploads))
	for _, u := range uploads {
		names = append(names, u.FileName)
	}
	h.record(r, actor, audit.ActionTaskProofUpload, task.ID, nil, map[string]any{"files": names, "proofCount": len(task.Proofs)})
	api.Created(w, task, requestID)
}

func (h *Handler) multipartMemory() int64 {
	return int64(max(h.Uploads.MaxFiles, 1)) * max(h.Uploads.MaxFileBytes, 1<<20)
}

func (h *Handler) parseProofFiles(r *http.Request) ([]tasks.ProofUpload, error) {
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required in field \"files\"")
	}
	if h.Uploads.MaxFiles > 0 && len(files) > h.Uploads.MaxFiles {
		return nil, fmt.Errorf("at most %d files per upload", h.Uploads.MaxFiles)
	}

	uploads := make([]tasks.ProofUpload, 0, len(files))
	for _, header := range files {
		if header == nil {
			continue
		}
		limit := h.Uploads.MaxFileBytes
		if limit > 0 && header.Size > limit {
			return nil, fmt.Errorf("file %s exceeds %d bytes", header.Filename, limit)
		}
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s", header.Filename)
		}
		reader := io.Reader(file)
		if limit > 0 {
			reader = io.LimitReader(file, limit+1)
		}
		content, err := io.ReadAll(reader)
		closeErr := file.Close()
		if err != nil || closeErr != nil {
			return nil, fmt.Errorf("failed to read file %s", header.Filename)
		}

		contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(content)
		}
		uploads = append(uploads, tasks.ProofUpload{
			FileName:    header.Filename,
			ContentType: contentType,
			Data:        content,
		})
	}
	return uploads, nil
}

func (h *Handler) handleListProofs(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	proofs, err := h.Service.ListProofs(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, proofs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadProof(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	proof, obj, err := h.Service.OpenProof(r.Context(), actor, chi.URLParam(r, "taskID"), chi.URLParam(r, "proofID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Body.Close()

	contentType := proof.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", proof.FileName))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		slog.Warn("proof download write failed", "proofId", proof.ID, "err", err)
	}
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	task, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Audit == nil {
		api.List(w, []audit.Event{}, 0, 1, defaultPageSize, requestID)
		return
	}

	page := shared.ParsePagination(r, defaultPageSize, maxPageSize)
	filter := audit.Filter{EntityType: audit.EntityTask, EntityID: task.ID}
	total, err := h.Audit.Count(r.Context(), actor.TenantID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.Audit.List(r.Context(), actor.TenantID, filter, true, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.List(w, events, total, page.Page, page.Limit, requestID)
}

func (h *Handler) record(r *http.Request, actor access.Actor, action, taskID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.TenantID, actor.UserID, action, audit.EntityTask, taskID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("task audit failed", "action", action, "taskId", taskID, "err", err)
	}
}

func (h *Handler) managerOf(ctx context.Context, tenantID, employeeID string) string {
	if h.Directory == nil {
		return ""
	}
	emp, err := h.Directory.GetEmployee(ctx, tenantID, employeeID)
	if err != nil {
		slog.Warn("assignee lookup failed", "employeeId", employeeID, "err", err)
		return ""
	}
	return emp.ManagerID
}

func (h *Handler) notifyEmployee(ctx context.Context, tenantID, employeeID, ntype, title, body string) {
	if h.Notify == nil || h.Directory == nil || employeeID == "" {
		return
	}
	emp, err := h.Directory.GetEmployee(ctx, tenantID, employeeID)
	if err != nil {
		slog.Warn("notification recipient lookup failed", "employeeId", employeeID, "err", err)
		return
	}
	if err := h.Notify.Create(ctx, tenantID, emp.UserID, ntype, title, body); err != nil {
		slog.Warn("task notification failed", "type", ntype, "err", err)
	}
}
