package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taskscore/internal/domain/access"
	"taskscore/internal/domain/audit"
	"taskscore/internal/domain/core"
	"taskscore/internal/domain/notifications"
	"taskscore/internal/domain/performance"
	"taskscore/internal/domain/tasks"
	"taskscore/internal/platform/blob"
	"taskscore/internal/platform/cache"
	"taskscore/internal/platform/config"
	"taskscore/internal/platform/db"
	"taskscore/internal/platform/jobs"
	"taskscore/internal/platform/metrics"
	"taskscore/internal/transport/http/api"
	audithandler "taskscore/internal/transport/http/handlers/audit"
	notificationshandler "taskscore/internal/transport/http/handlers/notifications"
	performancehandler "taskscore/internal/transport/http/handlers/performance"
	taskshandler "taskscore/internal/transport/http/handlers/tasks"
	"taskscore/internal/transport/http/middleware"
)

const rateLimitWindow = time.Minute

type App struct {
	Config  config.Config
	DB      *db.Pool
	Cache   *cache.Cache
	Jobs    *jobs.Service
	Scores  *performance.Service
	Metrics *metrics.Collector
	Router  http.Handler
}

// New connects every backing service and builds the HTTP router. The caller
// owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool, Metrics: metrics.New()}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.Cache, err = cache.New(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var proofs blob.Store = blob.NewPostgresStore(pool)
	if cfg.MinioEndpoint != "" {
		minioStore, err := blob.NewMinioStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
		proofs = minioStore
	}

	policy, err := performance.LoadPolicy(cfg.ScorePolicyFile)
	if err != nil {
		app.Close()
		return nil, err
	}

	directory := core.NewService(core.NewStore(pool))
	resolver := access.NewResolver(directory)
	app.Scores = performance.NewService(performance.NewStore(pool), directory, policy, cfg.ScoreWorkers)
	if app.Cache != nil {
		app.Scores.WithCache(app.Cache)
	}
	app.Jobs = jobs.New(pool)

	taskService := tasks.NewService(tasks.NewStore(pool), resolver, directory, proofs, tasks.Options{
		MinProofs:               cfg.ProofMinCount,
		MaxProofBytes:           cfg.ProofMaxBytes,
		RequireRejectionComment: cfg.RequireRejectionComment,
	})
	auditService := audit.New(pool)
	notifyService := notifications.New(notifications.NewStore(pool))

	var limits []middleware.RateLimitOption
	if app.Cache != nil {
		limits = append(limits, middleware.WithCounter(app.Cache))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(app.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, int64(cfg.ProofMaxPerUpload)*cfg.ProofMaxBytes+1<<20))
	router.Use(middleware.Auth(cfg.JWTSecret))

	registerOps(router, app, cfg.MetricsEnabled)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, rateLimitWindow, limits...))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, rateLimitWindow, limits...))

		taskshandler.NewHandler(
			taskService, resolver, directory, directory, auditService, notifyService, app.Metrics,
			middleware.NewIdempotencyStore(pool),
			taskshandler.UploadLimits{MaxFiles: cfg.ProofMaxPerUpload, MaxFileBytes: cfg.ProofMaxBytes},
		).RegisterRoutes(r)

		performancehandler.NewHandler(
			app.Scores, resolver, app.Jobs, directory, directory, auditService, notifyService, app.Metrics,
		).RegisterRoutes(r)

		notificationshandler.NewHandler(notifyService).RegisterRoutes(r)
		audithandler.NewHandler(auditService, directory).RegisterRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, api.CodeNotFound, "route not found", middleware.GetRequestID(r.Context()))
	})

	app.Router = router
	return app, nil
}

func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves the API until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config) error {
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	app.Jobs.Start(jobsCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	slog.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}
