package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskscore/internal/domain/access"
	"taskscore/internal/domain/core"
	"taskscore/internal/platform/blob"
)

type Capabilities interface {
	For(ctx context.Context, actor access.Actor, employeeID string) (access.Capability, error)
	Oversight(ctx context.Context, actor access.Actor) (access.Scope, error)
}

type Directory interface {
	GetEmployee(ctx context.Context, tenantID, employeeID string) (*core.Employee, error)
}

type Options struct {
	MinProofs               int
	MaxProofBytes           int64
	RequireRejectionComment bool
}

type Service struct {
	store     StoreAPI
	caps      Capabilities
	directory Directory
	blobs     blob.Store
	opts      Options
	now       func() time.Time
	newKey    func() string
}

func NewService(store StoreAPI, caps Capabilities, directory Directory, blobs blob.Store, opts Options) *Service {
	if opts.MinProofs <= 0 {
		opts.MinProofs = DefaultMinProofs
	}
	return &Service{
		store:     store,
		caps:      caps,
		directory: directory,
		blobs:     blobs,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newKey:    uuid.NewString,
	}
}

func (s *Service) MinProofs() int {
	return s.opts.MinProofs
}

func (s *Service) Create(ctx context.Context, actor access.Actor, in CreateInput) (Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Task{}, validationError("title is required")
	}
	if len(title) > MaxTitleLength {
		return Task{}, validationError("title must be at most %d characters", MaxTitleLength)
	}
	priority, ok := ParsePriority(string(in.Priority))
	if !ok {
		return Task{}, validationError("priority must be one of LOW, MEDIUM, HIGH, URGENT")
	}
	assigneeID := strings.TrimSpace(in.AssigneeID)
	if assigneeID == "" {
		return Task{}, validationError("assigneeId is required")
	}

	if _, err := s.directory.GetEmployee(ctx, actor.TenantID, assigneeID); err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			return Task{}, ErrAssigneeNotFound
		}
		return Task{}, err
	}

	caps, err := s.caps.For(ctx, actor, assigneeID)
	if err != nil {
		return Task{}, err
	}
	if !caps.IsManagerLevel() || !caps.CanReview() {
		return Task{}, ErrForbidden
	}

	var due *time.Time
	if in.DueDate != nil {
		d := in.DueDate.UTC()
		due = &d
	}
	return s.store.CreateTask(ctx, Task{
		TenantID:    actor.TenantID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Priority:    priority,
		Status:      StatusOpen,
		AssigneeID:  assigneeID,
		CreatedBy:   actor.EmployeeID,
		DueDate:     due,
	})
}

// load fetches a task the actor is allowed to see, with their capabilities
// over its assignee.
func (s *Service) load(ctx context.Context, actor access.Actor, taskID string) (Task, access.Capability, error) {
	task, err := s.store.GetTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return Task{}, 0, err
	}
	caps, err := s.caps.For(ctx, actor, task.AssigneeID)
	if err != nil {
		return Task{}, 0, err
	}
	if !caps.CanProgress() && task.CreatedBy != actor.EmployeeID {
		return Task{}, 0, ErrForbidden
	}
	return task, caps, nil
}

func (s *Service) Get(ctx context.Context, actor access.Actor, taskID string) (Task, error) {
	task, _, err := s.load(ctx, actor, taskID)
	if err != nil {
		return Task{}, err
	}
	proofs, err := s.store.ListProofs(ctx, actor.TenantID, taskID)
	if err != nil {
		return Task{}, err
	}
	task.Proofs = proofs
	return task, nil
}

func (s *Service) List(ctx context.Context, actor access.Actor, filter ListFilter) (ListResult, error) {
	q := Query{TenantID: actor.TenantID, Status: filter.Status, Limit: filter.Limit, Offset: filter.Offset}

	switch filter.View {
	case "", ViewMine:
		q.AssigneeIDs = []string{actor.EmployeeID}
	case ViewReviewQueue, ViewTeam:
		scope, err := s.caps.Oversight(ctx, actor)
		if err != nil {
			return ListResult{}, err
		}
		if scope.Empty() {
			return ListResult{Tasks: []Task{}}, nil
		}
		q.AllAssignees = scope.All
		q.AssigneeIDs = scope.EmployeeIDs
		if filter.View == ViewReviewQueue {
			q.Status = StatusWaitingForReview
			q.ExcludeAssignee = actor.EmployeeID
		}
	default:
		return ListResult{}, validationError("view must be one of mine, review-queue, team")
	}

	items, total, err := s.store.ListTasks(ctx, q)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Task{}
	}
	return ListResult{Tasks: items, Total: total}, nil
}

func (s *Service) Stats(ctx context.Context, actor access.Actor, scope string) (Stats, error) {
	q := Query{TenantID: actor.TenantID}

	switch scope {
	case "", ScopeMine:
		q.AssigneeIDs = []string{actor.EmployeeID}
	case ScopeTeam:
		oversight, err := s.caps.Oversight(ctx, actor)
		if err != nil {
			return Stats{}, err
		}
		if oversight.Empty() {
			return Stats{}, nil
		}
		q.AllAssignees = oversight.All
		q.AssigneeIDs = oversight.EmployeeIDs
	case ScopeTenant:
		if !actor.IsHR() {
			return Stats{}, ErrForbidden
		}
		q.AllAssignees = true
	default:
		return Stats{}, validationError("scope must be one of mine, team, tenant")
	}

	counts, err := s.store.CountByStatus(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	return statsFromCounts(counts), nil
}

func (s *Service) Transition(ctx context.Context, actor access.Actor, taskID string, in TransitionInput) (Task, error) {
	task, caps, err := s.load(ctx, actor, taskID)
	if err != nil {
		return Task{}, err
	}

	target := in.Target
	if !CanTransition(task.Status, target) {
		return Task{}, &InvalidTransitionError{From: task.Status, To: target}
	}

	if isReviewOutcome(target) {
		if !caps.CanReview() {
			return Task{}, ErrForbidden
		}
		if in.Rating == nil {
			return Task{}, ErrInvalidRating
		}
		return s.review(ctx, actor, task, caps, ReviewInput{
			Decision: decisionFor(target),
			Rating:   *in.Rating,
			Comment:  in.Comment,
		})
	}

	if transitions[edge{task.Status, target}] == ruleAssigneeOrManager && !caps.CanProgress() {
		return Task{}, ErrForbidden
	}

	if target == StatusWaitingForReview {
		count, err := s.store.CountProofs(ctx, actor.TenantID, taskID)
		if err != nil {
			return Task{}, err
		}
		if remaining := RemainingProofs(s.opts.MinProofs, count); remaining > 0 {
			return Task{}, &InsufficientEvidenceError{Required: s.opts.MinProofs, Current: count, Remaining: remaining}
		}
	}

	return s.store.UpdateStatus(ctx, actor.TenantID, taskID, task.Status, task.Version, target)
}
