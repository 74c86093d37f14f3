package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"taskscore/internal/platform/querier"
)

const (
	JobScoreRecalculation = "score_recalculation"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	queueSize = 128
)

// Service runs operator-triggered jobs and records each run in job_runs.
type Service struct {
	DB    querier.Querier
	queue chan job
}

type job struct {
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

func New(db querier.Querier) *Service {
	return &Service{
		DB:    db,
		queue: make(chan job, queueSize),
	}
}

// Start runs the background worker until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Enqueue schedules a job for the background worker. It reports false when
// the queue is full.
func (s *Service) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id::text
  `, j.TenantID, j.Type, StatusRunning).Scan(&runID); err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error()}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		// The run is recorded even when the caller has gone away.
		if _, updErr := s.DB.Exec(context.WithoutCancel(ctx), `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	if err != nil {
		return nil, err
	}
	return details, nil
}
