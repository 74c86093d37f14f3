package tasks

import "strings"

type Status string

const (
	StatusOpen             Status = "OPEN"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusWaitingForReview Status = "WAITING_FOR_REVIEW"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
)

var Statuses = []Status{StatusOpen, StatusInProgress, StatusWaitingForReview, StatusApproved, StatusRejected}

func ParseStatus(raw string) (Status, bool) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range Statuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func ParsePriority(raw string) (Priority, bool) {
	candidate := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	for _, priority := range Priorities {
		if priority == candidate {
			return priority, true
		}
	}
	return "", false
}

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

func ParseDecision(raw string) (Decision, bool) {
	switch Decision(strings.ToUpper(strings.TrimSpace(raw))) {
	case DecisionApprove:
		return DecisionApprove, true
	case DecisionReject:
		return DecisionReject, true
	}
	return "", false
}

type ProofKind string

const (
	ProofKindImage    ProofKind = "image"
	ProofKindDocument ProofKind = "document"
)

const (
	DefaultMinProofs = 3
	MinRating        = 1
	MaxRating        = 5
	MaxTitleLength   = 200
)

const (
	ViewMine        = "mine"
	ViewReviewQueue = "review-queue"
	ViewTeam        = "team"

	ScopeMine   = "mine"
	ScopeTeam   = "team"
	ScopeTenant = "tenant"
)
