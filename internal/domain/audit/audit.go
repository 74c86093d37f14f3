package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"taskscore/internal/platform/querier"
)

const (
	ActionTaskCreate      = "task.create"
	ActionTaskTransition  = "task.transition"
	ActionTaskProofUpload = "task.proof.upload"
	ActionTaskReview      = "task.review"
	ActionScoreCalculate  = "score.calculate"
	ActionScoreBatch      = "score.batch"

	EntityTask  = "task"
	EntityScore = "employee_score"
)

// Event is one row of the append-only audit trail. Before and After hold
// JSON snapshots of the entity and are only loaded on request.
type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Filter narrows a tenant's events. Zero fields match everything; Until is
// exclusive.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorUser  string
	Since      time.Time
	Until      time.Time
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, tenantID, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	beforeJSON, err := snapshot(before)
	if err != nil {
		return err
	}
	afterJSON, err := snapshot(after)
	if err != nil {
		return err
	}

	var actor any
	if actorID != "" {
		actor = actorID
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, tenantID, actor, action, entityType, entityID, beforeJSON, afterJSON, requestID, ip)
	return err
}

func snapshot(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func (s *Service) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	where, args := filter.where(tenantID)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns newest events first.
func (s *Service) List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	cols := "id::text, COALESCE(actor_user_id::text, ''), action, entity_type, entity_id, COALESCE(request_id, ''), COALESCE(ip, ''), created_at"
	if includeDetails {
		cols += ", before_json, after_json"
	}
	where, args := filter.where(tenantID)
	n := len(args)
	query := "SELECT " + cols + " FROM audit_events WHERE " + where +
		" ORDER BY created_at DESC, id LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &evt.Before, &evt.After)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// where renders the tenant-scoped predicate with positional args.
func (f Filter) where(tenantID string) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(expr string, value any) {
		args = append(args, value)
		clauses = append(clauses, expr+" $"+strconv.Itoa(len(args)))
	}
	if f.Action != "" {
		add("action =", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type =", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id =", f.EntityID)
	}
	if f.ActorUser != "" {
		add("actor_user_id::text =", f.ActorUser)
	}
	if !f.Since.IsZero() {
		add("created_at >=", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at <", f.Until)
	}
	return strings.Join(clauses, " AND "), args
}
