package performance

import (
	"context"
	"time"
)

type StoreAPI interface {
	ReviewedTasks(ctx context.Context, tenantID, employeeID string, start, end time.Time) ([]ReviewedTask, error)
	WarningCount(ctx context.Context, tenantID, employeeID string, start, end time.Time) (int, error)
	// AppendScore records score unless the latest snapshot for the same
	// employee and period already carries the same result; then it returns
	// that snapshot and false. Calls for one employee and period are
	// serialised.
	AppendScore(ctx context.Context, tenantID string, score EmployeeScore) (EmployeeScore, bool, error)
	LatestScore(ctx context.Context, tenantID, employeeID string) (EmployeeScore, error)
	ScoreHistory(ctx context.Context, tenantID, employeeID string, limit int) ([]EmployeeScore, error)
	// LatestScores returns the live snapshot of every scored employee.
	LatestScores(ctx context.Context, tenantID string) ([]EmployeeScore, error)
}
