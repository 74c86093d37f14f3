package tasks

import (
	"mime"
	"strings"
)

type actorRule int

const (
	// assignee or anyone holding reviewer capability over the assignee
	ruleAssigneeOrManager actorRule = iota
	ruleReviewerOnly
)

type edge struct {
	from Status
	to   Status
}

var transitions = map[edge]actorRule{
	{StatusOpen, StatusInProgress}:             ruleAssigneeOrManager,
	{StatusInProgress, StatusWaitingForReview}: ruleAssigneeOrManager,
	{StatusWaitingForReview, StatusApproved}:   ruleReviewerOnly,
	{StatusWaitingForReview, StatusRejected}:   ruleReviewerOnly,
	{StatusRejected, StatusInProgress}:         ruleAssigneeOrManager,
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// NextStatuses lists the statuses reachable from the given one.
func NextStatuses(from Status) []Status {
	var out []Status
	for _, to := range Statuses {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

func isReviewOutcome(status Status) bool {
	return status == StatusApproved || status == StatusRejected
}

func decisionFor(status Status) Decision {
	if status == StatusApproved {
		return DecisionApprove
	}
	return DecisionReject
}

// RemainingProofs is how many more proofs are needed to reach min.
func RemainingProofs(min, current int) int {
	return max(0, min-current)
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

var documentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"text/plain": {},
	"text/csv":   {},
}

// ProofKindFor classifies an upload by media type.
func ProofKindFor(contentType string) (ProofKind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	mediaType = strings.ToLower(mediaType)
	if strings.HasPrefix(mediaType, "image/") {
		return ProofKindImage, true
	}
	if _, ok := documentTypes[mediaType]; ok {
		return ProofKindDocument, true
	}
	return "", false
}
