package tasks

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrProofNotFound    = errors.New("proof not found")
	ErrAssigneeNotFound = errors.New("assignee not found")
	ErrForbidden        = errors.New("not permitted")
	ErrStaleState       = errors.New("task changed since it was read, refetch and retry")
	ErrInvalidRating    = errors.New("rating must be an integer between 1 and 5")
	ErrCommentRequired  = errors.New("a comment is required when rejecting a task")
	ErrEvidenceFrozen   = errors.New("evidence cannot be added to an approved task")
	ErrValidation       = errors.New("invalid input")
)

// InvalidTransitionError reports an edge missing from the lifecycle table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move task from %s to %s", e.From, e.To)
}

// InsufficientEvidenceError reports how many more proofs are needed.
type InsufficientEvidenceError struct {
	Required  int
	Current   int
	Remaining int
}

func (e *InsufficientEvidenceError) Error() string {
	noun := "proofs"
	if e.Remaining == 1 {
		noun = "proof"
	}
	return fmt.Sprintf("need %d more %s before review (have %d of %d)", e.Remaining, noun, e.Current, e.Required)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
