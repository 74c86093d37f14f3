package taskshandler

import (
	"errors"
	"log/slog"
	"net/http"

	"taskscore/internal/domain/access"
	"taskscore/internal/domain/tasks"
	"taskscore/internal/platform/blob"
	"taskscore/internal/transport/http/api"
	"taskscore/internal/transport/http/middleware"
)

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var evidence *tasks.InsufficientEvidenceError
	if errors.As(err, &evidence) {
		api.FailEvidence(w, evidence.Error(), evidence.Remaining, requestID)
		return
	}
	var transition *tasks.InvalidTransitionError
	if errors.As(err, &transition) {
		api.Fail(w, http.StatusBadRequest, api.CodeInvalidTransition, transition.Error(), requestID)
		return
	}

	switch {
	case errors.Is(err, tasks.ErrInvalidRating):
		api.Fail(w, http.StatusBadRequest, api.CodeInvalidRating, err.Error(), requestID)
	case errors.Is(err, tasks.ErrValidation),
		errors.Is(err, tasks.ErrCommentRequired),
		errors.Is(err, tasks.ErrEvidenceFrozen):
		api.Fail(w, http.StatusBadRequest, api.CodeValidation, err.Error(), requestID)
	case errors.Is(err, tasks.ErrForbidden), errors.Is(err, access.ErrNoEmployeeProfile):
		api.Fail(w, http.StatusForbidden, api.CodeForbidden, err.Error(), requestID)
	case errors.Is(err, tasks.ErrTaskNotFound),
		errors.Is(err, tasks.ErrProofNotFound),
		errors.Is(err, tasks.ErrAssigneeNotFound),
		errors.Is(err, blob.ErrNotFound):
		api.Fail(w, http.StatusNotFound, api.CodeNotFound, err.Error(), requestID)
	case errors.Is(err, tasks.ErrStaleState):
		api.Fail(w, http.StatusConflict, api.CodeStaleState, err.Error(), requestID)
	default:
		slog.Error("task request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, api.CodeInternal, "internal server error", requestID)
	}
}
