package tasks

import "context"

type StoreAPI interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, tenantID, taskID string) (Task, error)
	ListTasks(ctx context.Context, q Query) ([]Task, int, error)
	CountByStatus(ctx context.Context, q Query) (map[Status]int, error)
	// UpdateStatus applies from -> to only if the row still has the given
	// status and version; otherwise it returns ErrStaleState.
	UpdateStatus(ctx context.Context, tenantID, taskID string, from Status, version int, to Status) (Task, error)
	// ApplyReview writes the outcome only if the task is still waiting for
	// review at the given version; otherwise it returns ErrStaleState.
	ApplyReview(ctx context.Context, tenantID, taskID string, version int, outcome ReviewOutcome) (Task, error)
	// InsertProofs appends all proofs or none, and refuses approved tasks
	// with ErrEvidenceFrozen.
	InsertProofs(ctx context.Context, tenantID, taskID string, proofs []Proof) ([]Proof, error)
	CountProofs(ctx context.Context, tenantID, taskID string) (int, error)
	ListProofs(ctx context.Context, tenantID, taskID string) ([]Proof, error)
	GetProof(ctx context.Context, tenantID, taskID, proofID string) (Proof, error)
}
