package performance

import "errors"

const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
	GradeF = "F"

	DefaultHistoryLimit     = 12
	MaxHistoryLimit         = 120
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 200

	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

var (
	ErrScoreNotFound    = errors.New("no score has been calculated for this employee")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrInvalidPeriod    = errors.New("period end must be after period start")
	ErrCorruptData      = errors.New("review data is inconsistent")
)
