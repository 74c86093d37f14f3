package tasks

import "time"

type Task struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"-"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	AssigneeID     string     `json:"assigneeId"`
	CreatedBy      string     `json:"createdBy"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ReviewDecision Decision   `json:"reviewDecision,omitempty"`
	ReviewRating   *int       `json:"reviewRating,omitempty"`
	ReviewComment  string     `json:"reviewComment,omitempty"`
	ReviewedBy     string     `json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Proofs         []Proof    `json:"proofs,omitempty"`
}

type Proof struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	FileKey     string    `json:"-"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Kind        ProofKind `json:"kind"`
	UploadedBy  string    `json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProofUpload is a file received from the caller, not yet stored.
type ProofUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type CreateInput struct {
	Title       string
	Description string
	Priority    Priority
	AssigneeID  string
	DueDate     *time.Time
}

type TransitionInput struct {
	Target Status
	// Rating and Comment are only read for review outcomes.
	Rating  *int
	Comment string
}

type ReviewInput struct {
	Decision Decision
	Rating   int
	Comment  string
}

// ReviewOutcome is the full set of fields written by a review.
type ReviewOutcome struct {
	Status      Status
	Decision    Decision
	Rating      int
	Comment     string
	ReviewedBy  string
	ReviewedAt  time.Time
	CompletedAt *time.Time
}

type ListFilter struct {
	View   string
	Status Status
	Limit  int
	Offset int
}

// Query is the store-level form of a listing, after scope resolution.
type Query struct {
	TenantID        string
	AllAssignees    bool
	AssigneeIDs     []string
	ExcludeAssignee string
	Status          Status
	Limit           int
	Offset          int
}

type ListResult struct {
	Tasks []Task
	Total int
}

type Stats struct {
	Open          int `json:"open"`
	InProgress    int `json:"inProgress"`
	WaitingReview int `json:"waitingReview"`
	Approved      int `json:"approved"`
	Rejected      int `json:"rejected"`
	Total         int `json:"total"`
}

func statsFromCounts(counts map[Status]int) Stats {
	stats := Stats{
		Open:          counts[StatusOpen],
		InProgress:    counts[StatusInProgress],
		WaitingReview: counts[StatusWaitingForReview],
		Approved:      counts[StatusApproved],
		Rejected:      counts[StatusRejected],
	}
	stats.Total = stats.Open + stats.InProgress + stats.WaitingReview + stats.Approved + stats.Rejected
	return stats
}
