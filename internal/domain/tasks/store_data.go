package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const taskColumns = `
    id::text, title, COALESCE(description, ''), priority, status,
    assignee_id::text, created_by::text, due_date, completed_at,
    COALESCE(review_decision, ''), review_rating, COALESCE(review_comment, ''),
    COALESCE(reviewed_by::text, ''), reviewed_at, version, created_at, updated_at`

const proofColumns = `
    id::text, task_id::text, file_key, file_name, content_type, size_bytes, kind, uploaded_by::text, created_at`

func scanTask(row pgx.Row, tenantID string) (Task, error) {
	var t Task
	var decision string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.AssigneeID, &t.CreatedBy, &t.DueDate, &t.CompletedAt,
		&decision, &t.ReviewRating, &t.ReviewComment,
		&t.ReviewedBy, &t.ReviewedAt, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	t.TenantID = tenantID
	t.ReviewDecision = Decision(decision)
	return t, err
}

func scanProof(row pgx.Row) (Proof, error) {
	var p Proof
	err := row.Scan(&p.ID, &p.TaskID, &p.FileKey, &p.FileName, &p.ContentType, &p.SizeBytes, &p.Kind, &p.UploadedBy, &p.CreatedAt)
	return p, err
}

func (s *Store) CreateTask(ctx context.Context, task Task) (Task, error) {
	created, err := scanTask(s.DB.QueryRow(ctx, `
    INSERT INTO tasks (tenant_id, title, description, priority, status, assignee_id, created_by, due_date)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING`+taskColumns,
		task.TenantID, task.Title, nullIfEmpty(task.Description), task.Priority, task.Status,
		task.AssigneeID, task.CreatedBy, task.DueDate,
	), task.TenantID)
	if err != nil {
		return Task{}, err
	}
	return created, nil
}

func (s *Store) GetTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	task, err := scanTask(s.DB.QueryRow(ctx, `
    SELECT`+taskColumns+`
    FROM tasks
    WHERE tenant_id = $1 AND id::text = $2
  `, tenantID, taskID), tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func buildTaskWhere(q Query) (string, []any) {
	where := " WHERE tenant_id = $1"
	args := []any{q.TenantID}
	if !q.AllAssignees {
		where += fmt.Sprintf(" AND assignee_id::text = ANY($%d)", len(args)+1)
		args = append(args, q.AssigneeIDs)
	}
	if q.ExcludeAssignee != "" {
		where += fmt.Sprintf(" AND assignee_id::text <> $%d", len(args)+1)
		args = append(args, q.ExcludeAssignee)
	}
	if q.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, q.Status)
	}
	return where, args
}

func (s *Store) ListTasks(ctx context.Context, q Query) ([]Task, int, error) {
	where, args := buildTaskWhere(q)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM tasks"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT" + taskColumns + " FROM tasks" + where +
		fmt.Sprintf(" ORDER BY (due_date IS NULL), due_date, created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows, q.TenantID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, task)
	}
	return out, total, rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context, q Query) (map[Status]int, error) {
	where, args := buildTaskWhere(q)
	rows, err := s.DB.Query(ctx, "SELECT status, COUNT(1) FROM tasks"+where+" GROUP BY status", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, tenantID, taskID string, from Status, version int, to Status) (Task, error) {
	task, err := scanTask(s.DB.QueryRow(ctx, `
    UPDATE tasks
    SET status = $1, version = version + 1, updated_at = now()
    WHERE tenant_id = $2 AND id::text = $3 AND status = $4 AND version = $5
    RETURNING`+taskColumns,
		to, tenantID, taskID, from, version,
	), tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrStaleState
	}
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *Store) ApplyReview(ctx context.Context, tenantID, taskID string, version int, outcome ReviewOutcome) (Task, error) {
	task, err := scanTask(s.DB.QueryRow(ctx, `
    UPDATE tasks
    SET status = $1,
        review_decision = $2,
        review_rating = $3,
        review_comment = $4,
        reviewed_by = $5,
        reviewed_at = $6,
        completed_at = COALESCE($7, completed_at),
        version = version + 1,
        updated_at = now()
    WHERE tenant_id = $8 AND id::text = $9 AND status = $10 AND version = $11
    RETURNING`+taskColumns,
		outcome.Status, outcome.Decision, outcome.Rating, nullIfEmpty(outcome.Comment),
		outcome.ReviewedBy, outcome.ReviewedAt, outcome.CompletedAt,
		tenantID, taskID, StatusWaitingForReview, version,
	), tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrStaleState
	}
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *Store) InsertProofs(ctx context.Context, tenantID, taskID string, proofs []Proof) ([]Proof, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the task row so a concurrent approval cannot slip between the
	// status check and the inserts.
	var status Status
	err = tx.QueryRow(ctx, `
    SELECT status FROM tasks
    WHERE tenant_id = $1 AND id::text = $2
    FOR SHARE
  `, tenantID, taskID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if status == StatusApproved {
		return nil, ErrEvidenceFrozen
	}

	out := make([]Proof, 0, len(proofs))
	for _, p := range proofs {
		inserted, err := scanProof(tx.QueryRow(ctx, `
      INSERT INTO task_proofs (tenant_id, task_id, file_key, file_name, content_type, size_bytes, kind, uploaded_by)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      RETURNING`+proofColumns,
			tenantID, taskID, p.FileKey, p.FileName, p.ContentType, p.SizeBytes, p.Kind, p.UploadedBy,
		))
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountProofs(ctx context.Context, tenantID, taskID string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM task_proofs
    WHERE tenant_id = $1 AND task_id::text = $2
  `, tenantID, taskID).Scan(&count)
	return count, err
}

func (s *Store) ListProofs(ctx context.Context, tenantID, taskID string) ([]Proof, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+proofColumns+`
    FROM task_proofs
    WHERE tenant_id = $1 AND task_id::text = $2
    ORDER BY seq
  `, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Proof
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProof(ctx context.Context, tenantID, taskID, proofID string) (Proof, error) {
	p, err := scanProof(s.DB.QueryRow(ctx, `
    SELECT`+proofColumns+`
    FROM task_proofs
    WHERE tenant_id = $1 AND task_id::text = $2 AND id::text = $3
  `, tenantID, taskID, proofID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Proof{}, ErrProofNotFound
	}
	return p, err
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
