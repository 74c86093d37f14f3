package performance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const scoreColumns = `
    id::text, employee_id::text, period_start, period_end,
    task_rating_score::float8, completion_score::float8, consistency_score::float8,
    disciplinary_score::float8, total_score::float8, grade,
    tasks_considered, approved_count, rejected_count,
    rating_sum, average_rating::float8, due_dated_count, on_time_count,
    on_time_rate::float8, warning_count, calculated_at`

func scanScore(row pgx.Row) (EmployeeScore, error) {
	var s EmployeeScore
	err := row.Scan(
		&s.ID, &s.EmployeeID, &s.PeriodStart, &s.PeriodEnd,
		&s.TaskRatingScore, &s.CompletionScore, &s.ConsistencyScore,
		&s.DisciplinaryScore, &s.TotalScore, &s.Grade,
		&s.TasksConsidered, &s.ApprovedCount, &s.RejectedCount,
		&s.RatingSum, &s.AverageRating, &s.DueDatedCount, &s.OnTimeCount,
		&s.OnTimeRate, &s.WarningCount, &s.CalculatedAt,
	)
	if err != nil {
		return EmployeeScore{}, err
	}
	s.PeriodStart = s.PeriodStart.UTC()
	s.PeriodEnd = s.PeriodEnd.UTC()
	return s, nil
}

func collectScores(rows pgx.Rows) ([]EmployeeScore, error) {
	defer rows.Close()
	var out []EmployeeScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, score)
	}
	return out, rows.Err()
}

// ReviewedTasks reads task outcomes directly; reviewed_at carries the
// latest review on each task.
func (s *Store) ReviewedTasks(ctx context.Context, tenantID, employeeID string, start, end time.Time) ([]ReviewedTask, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, COALESCE(review_decision, ''), review_rating, due_date, completed_at, reviewed_at
    FROM tasks
    WHERE tenant_id = $1 AND assignee_id::text = $2
      AND reviewed_at >= $3 AND reviewed_at < $4
    ORDER BY reviewed_at, id
  `, tenantID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviewedTask
	for rows.Next() {
		var t ReviewedTask
		if err := rows.Scan(&t.TaskID, &t.Decision, &t.Rating, &t.DueDate, &t.CompletedAt, &t.ReviewedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) WarningCount(ctx context.Context, tenantID, employeeID string, start, end time.Time) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM disciplinary_warnings
    WHERE tenant_id = $1 AND employee_id::text = $2
      AND issued_at >= $3 AND issued_at < $4
  `, tenantID, employeeID, start, end).Scan(&count)
	return count, err
}

func (s *Store) AppendScore(ctx context.Context, tenantID string, score EmployeeScore) (EmployeeScore, bool, error) {
	var (
		saved   EmployeeScore
		created bool
	)
	lockKey := strings.Join([]string{
		tenantID, score.EmployeeID,
		score.PeriodStart.Format(time.DateOnly), score.PeriodEnd.Format(time.DateOnly),
	}, "|")
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		// Held until commit; concurrent recalculations of one period queue here.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return fmt.Errorf("lock score period: %w", err)
		}

		previous, err := scanScore(tx.QueryRow(ctx, `
    SELECT`+scoreColumns+`
    FROM employee_scores
    WHERE tenant_id = $1 AND employee_id::text = $2 AND period_start = $3 AND period_end = $4
    ORDER BY calculated_at DESC, id DESC
    LIMIT 1
  `, tenantID, score.EmployeeID, score.PeriodStart, score.PeriodEnd))
		switch {
		case err == nil && sameResult(previous, score):
			saved = previous
			return nil
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("load previous score: %w", err)
		}

		saved, err = scanScore(tx.QueryRow(ctx, `
    INSERT INTO employee_scores (
      tenant_id, employee_id, period_start, period_end,
      task_rating_score, completion_score, consistency_score, disciplinary_score, total_score, grade,
      tasks_considered, approved_count, rejected_count, rating_sum, average_rating,
      due_dated_count, on_time_count, on_time_rate, warning_count
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
    RETURNING`+scoreColumns,
			tenantID, score.EmployeeID, score.PeriodStart, score.PeriodEnd,
			score.TaskRatingScore, score.CompletionScore, score.ConsistencyScore, score.DisciplinaryScore,
			score.TotalScore, score.Grade,
			score.TasksConsidered, score.ApprovedCount, score.RejectedCount, score.RatingSum, score.AverageRating,
			score.DueDatedCount, score.OnTimeCount, score.OnTimeRate, score.WarningCount,
		))
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return EmployeeScore{}, false, err
	}
	return saved, created, nil
}

func (s *Store) LatestScore(ctx context.Context, tenantID, employeeID string) (EmployeeScore, error) {
	score, err := scanScore(s.DB.QueryRow(ctx, `
    SELECT`+scoreColumns+`
    FROM employee_scores
    WHERE tenant_id = $1 AND employee_id::text = $2
    ORDER BY calculated_at DESC, id DESC
    LIMIT 1
  `, tenantID, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return EmployeeScore{}, ErrScoreNotFound
	}
	return score, err
}

func (s *Store) ScoreHistory(ctx context.Context, tenantID, employeeID string, limit int) ([]EmployeeScore, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+scoreColumns+`
    FROM employee_scores
    WHERE tenant_id = $1 AND employee_id::text = $2
    ORDER BY calculated_at DESC, id DESC
    LIMIT $3
  `, tenantID, employeeID, limit)
	if err != nil {
		return nil, err
	}
	return collectScores(rows)
}

func (s *Store) LatestScores(ctx context.Context, tenantID string) ([]EmployeeScore, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT ON (employee_id)`+scoreColumns+`
    FROM employee_scores
    WHERE tenant_id = $1
    ORDER BY employee_id, calculated_at DESC, id DESC
  `, tenantID)
	if err != nil {
		return nil, err
	}
	return collectScores(rows)
}
