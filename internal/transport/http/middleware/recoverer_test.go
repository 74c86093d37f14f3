package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"taskscore/internal/platform/metrics"
)

func TestRecovererReturns500(t *testing.T) {
	collector := metrics.New()
	handler := RequestID(Logger(collector)(Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := collector.Snapshot()["errorsTotal"].(uint64); got != 1 {
		t.Fatalf("expected one error recorded, got %d", got)
	}
}
