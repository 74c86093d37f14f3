package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInsufficientEvidence = "INSUFFICIENT_EVIDENCE"
	CodeInvalidRating        = "INVALID_RATING"
	CodeStaleState           = "STALE_STATE"
	CodeConflict             = "CONFLICT"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL"
)

type Meta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type Envelope struct {
	Data      any    `json:"data"`
	Meta      *Meta  `json:"meta,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Data: data, RequestID: requestID})
}

func Accepted(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusAccepted, Envelope{Data: data, RequestID: requestID})
}

// List writes a page of results with its pagination meta.
func List(w http.ResponseWriter, data any, total, page, limit int, requestID string) {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	WriteJSON(w, http.StatusOK, Envelope{
		Data:      data,
		Meta:      &Meta{Total: total, Page: page, Limit: limit, TotalPages: totalPages},
		RequestID: requestID,
	})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, ErrorBody{Error: message, Code: code, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, ErrorBody{Error: message, Code: code, Details: details, RequestID: requestID})
}

// FailEvidence reports how many more proofs are needed before review.
func FailEvidence(w http.ResponseWriter, message string, remaining int, requestID string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{
		Error:     message,
		Code:      CodeInsufficientEvidence,
		Remaining: &remaining,
		RequestID: requestID,
	})
}
