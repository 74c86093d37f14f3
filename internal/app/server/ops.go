package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taskscore/internal/platform/metrics"
	"taskscore/internal/transport/http/api"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type readiness struct {
	db    pinger
	cache pinger
}

func registerOps(r chi.Router, app *App, metricsEnabled bool) {
	ready := readiness{db: app.DB}
	if app.Cache != nil {
		ready.cache = app.Cache
	}
	mountOps(r, ready, app.Metrics, metricsEnabled)
}

func mountOps(r chi.Router, ready readiness, collector *metrics.Collector, metricsEnabled bool) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready.db.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if ready.cache != nil {
			if err := ready.cache.Ping(ctx); err != nil {
				http.Error(w, "cache not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if metricsEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.WriteJSON(w, http.StatusOK, collector.Snapshot())
		})
	}
}
