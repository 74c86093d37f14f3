package performance

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Calculate computes and records the employee's score for the period.
// Re-running it over unchanged data returns the existing snapshot with
// created false.
func (s *Service) Calculate(ctx context.Context, tenantID, employeeID string, period Period) (score EmployeeScore, created bool, err error) {
	if err := period.Validate(); err != nil {
		return EmployeeScore{}, false, err
	}
	if err := s.employeeExists(ctx, tenantID, employeeID); err != nil {
		return EmployeeScore{}, false, err
	}

	reviewed, err := s.store.ReviewedTasks(ctx, tenantID, employeeID, period.Start, period.End)
	if err != nil {
		return EmployeeScore{}, false, fmt.Errorf("load reviewed tasks: %w", err)
	}
	warnings, err := s.store.WarningCount(ctx, tenantID, employeeID, period.Start, period.End)
	if err != nil {
		return EmployeeScore{}, false, fmt.Errorf("load warnings: %w", err)
	}
	metrics, err := BuildMetrics(reviewed, warnings)
	if err != nil {
		return EmployeeScore{}, false, err
	}

	score, created, err = s.store.AppendScore(ctx, tenantID, s.policy.Score(employeeID, period, metrics))
	if err != nil {
		return EmployeeScore{}, false, fmt.Errorf("save score: %w", err)
	}
	if created {
		s.invalidate(ctx, tenantID)
	}
	return score, created, nil
}

// CalculateAll scores every active employee with a bounded pool of workers.
// One employee failing never stops the others. Once deadline passes no new
// employees are started; those already running finish and the rest are
// reported in Skipped. A zero deadline means no limit.
func (s *Service) CalculateAll(ctx context.Context, tenantID string, period Period, deadline time.Time) (BatchResult, error) {
	if err := period.Validate(); err != nil {
		return BatchResult{}, err
	}
	ids, err := s.directory.ListActiveEmployeeIDs(ctx, tenantID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list employees: %w", err)
	}

	result := BatchResult{
		Period:  period,
		Results: make(map[string]Outcome, len(ids)),
		Skipped: []string{},
	}

	dispatchCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	// Work already handed to a worker runs to completion.
	workCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	queue := make(chan string)
	var g errgroup.Group
	for range min(s.workers, max(1, len(ids))) {
		g.Go(func() error {
			for employeeID := range queue {
				score, created, err := s.calculateIsolated(workCtx, tenantID, employeeID, period)
				mu.Lock()
				if err != nil {
					result.Results[employeeID] = Outcome{Error: err.Error()}
					result.Failed++
				} else {
					result.Results[employeeID] = Outcome{Score: &score, Unchanged: !created}
					result.Succeeded++
				}
				mu.Unlock()
				if err != nil {
					slog.Warn("score calculation failed", "tenantId", tenantID, "employeeId", employeeID, "err", err)
				}
			}
			return nil
		})
	}

dispatch:
	for i, employeeID := range ids {
		// Checked first so an expired deadline never races a ready worker.
		if dispatchCtx.Err() != nil {
			result.Skipped = append(result.Skipped, ids[i:]...)
			break
		}
		select {
		case queue <- employeeID:
		case <-dispatchCtx.Done():
			result.Skipped = append(result.Skipped, ids[i:]...)
			break dispatch
		}
	}
	close(queue)
	_ = g.Wait()

	slog.Info("score batch finished",
		"tenantId", tenantID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *Service) calculateIsolated(ctx context.Context, tenantID, employeeID string, period Period) (score EmployeeScore, created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("score calculation panicked", "employeeId", employeeID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("score calculation panicked: %v", r)
		}
	}()
	return s.Calculate(ctx, tenantID, employeeID, period)
}
