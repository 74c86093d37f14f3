package notifications

const (
	TypeTaskAssigned       = "task_assigned"
	TypeTaskAwaitingReview = "task_awaiting_review"
	TypeTaskApproved       = "task_approved"
	TypeTaskRejected       = "task_rejected"
	TypeScoreUpdated       = "score_updated"
)
