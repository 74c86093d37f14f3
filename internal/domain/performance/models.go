package performance

import "time"

type EmployeeScore struct {
	ID                string    `json:"id"`
	EmployeeID        string    `json:"employeeId"`
	PeriodStart       time.Time `json:"periodStart"`
	PeriodEnd         time.Time `json:"periodEnd"`
	TaskRatingScore   float64   `json:"taskRatingScore"`
	CompletionScore   float64   `json:"completionScore"`
	ConsistencyScore  float64   `json:"consistencyScore"`
	DisciplinaryScore float64   `json:"disciplinaryScore"`
	TotalScore        float64   `json:"totalScore"`
	Grade             string    `json:"grade"`
	Metrics
	CalculatedAt time.Time `json:"calculatedAt"`
}

// Metrics are the raw inputs a score was derived from. AverageRating and
// OnTimeRate are rounded for display; components are computed from the
// exact sums beside them.
type Metrics struct {
	TasksConsidered int     `json:"tasksConsidered"`
	ApprovedCount   int     `json:"approvedCount"`
	RejectedCount   int     `json:"rejectedCount"`
	RatingSum       int     `json:"ratingSum"`
	AverageRating   float64 `json:"averageRating"`
	DueDatedCount   int     `json:"dueDatedCount"`
	OnTimeCount     int     `json:"onTimeCount"`
	OnTimeRate      float64 `json:"onTimeRate"`
	WarningCount    int     `json:"warningCount"`
}

// averageRating is the unrounded mean. Snapshots written before the sums
// were stored fall back to the rounded value.
func (m Metrics) averageRating() float64 {
	if m.TasksConsidered > 0 && m.RatingSum > 0 {
		return float64(m.RatingSum) / float64(m.TasksConsidered)
	}
	return m.AverageRating
}

func (m Metrics) onTimeRate() float64 {
	if m.DueDatedCount > 0 {
		return float64(m.OnTimeCount) / float64(m.DueDatedCount)
	}
	return m.OnTimeRate
}

type Components struct {
	TaskRating   float64
	Completion   float64
	Consistency  float64
	Disciplinary float64
	Total        float64
}

// ReviewedTask is one task outcome feeding a score.
type ReviewedTask struct {
	TaskID      string
	Decision    string
	Rating      *int
	DueDate     *time.Time
	CompletedAt *time.Time
	ReviewedAt  time.Time
}

// Period is the half-open interval [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || !p.End.After(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// MonthOf returns the calendar month (UTC) containing t.
func MonthOf(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

type Outcome struct {
	Score     *EmployeeScore `json:"score,omitempty"`
	Unchanged bool           `json:"unchanged,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type BatchResult struct {
	Period    Period             `json:"period"`
	Results   map[string]Outcome `json:"results"`
	Skipped   []string           `json:"skipped"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

type RankedEntry struct {
	Rank           int       `json:"rank"`
	EmployeeID     string    `json:"employeeId"`
	EmployeeName   string    `json:"employeeName"`
	JobTitle       string    `json:"jobTitle"`
	DepartmentID   string    `json:"departmentId"`
	DepartmentName string    `json:"departmentName"`
	TotalScore     float64   `json:"totalScore"`
	Grade          string    `json:"grade"`
	AverageRating  float64   `json:"averageRating"`
	OnTimeRate     float64   `json:"onTimeRate"`
	CalculatedAt   time.Time `json:"calculatedAt"`
}
