package tasks

import (
	"context"
	"strings"

	"taskscore/internal/domain/access"
)

// Review applies a reviewer's decision to a task waiting for review.
func (s *Service) Review(ctx context.Context, actor access.Actor, taskID string, in ReviewInput) (Task, error) {
	decision, ok := ParseDecision(string(in.Decision))
	if !ok {
		return Task{}, validationError("decision must be APPROVE or REJECT")
	}
	in.Decision = decision
	task, caps, err := s.load(ctx, actor, taskID)
	if err != nil {
		return Task{}, err
	}
	return s.review(ctx, actor, task, caps, in)
}

// review expects in.Decision to be canonical.
func (s *Service) review(ctx context.Context, actor access.Actor, task Task, caps access.Capability, in ReviewInput) (Task, error) {
	if !caps.CanReview() {
		return Task{}, ErrForbidden
	}
	if task.Status != StatusWaitingForReview {
		return Task{}, ErrStaleState
	}
	if err := ValidateRating(in.Rating); err != nil {
		return Task{}, err
	}
	comment := strings.TrimSpace(in.Comment)
	decision := in.Decision
	if decision == DecisionReject && s.opts.RequireRejectionComment && comment == "" {
		return Task{}, ErrCommentRequired
	}

	now := s.now()
	outcome := ReviewOutcome{
		Status:     StatusRejected,
		Decision:   decision,
		Rating:     in.Rating,
		Comment:    comment,
		ReviewedBy: actor.EmployeeID,
		ReviewedAt: now,
	}
	if decision == DecisionApprove {
		outcome.Status = StatusApproved
		completed := now
		if task.CompletedAt != nil {
			completed = *task.CompletedAt
		}
		outcome.CompletedAt = &completed
	}

	return s.store.ApplyReview(ctx, actor.TenantID, task.ID, task.Version, outcome)
}
