package performance

import (
	"fmt"
	"math"
)

// BuildMetrics summarises the reviewed tasks of one period. Ratings are the
// latest review on each task. A task without a valid rating is reported as
// ErrCorruptData rather than skipped.
func BuildMetrics(reviewed []ReviewedTask, warnings int) (Metrics, error) {
	m := Metrics{WarningCount: max(0, warnings)}

	for _, task := range reviewed {
		if task.Rating == nil || *task.Rating < 1 || *task.Rating > 5 {
			return Metrics{}, fmt.Errorf("%w: task %s has no valid rating", ErrCorruptData, task.TaskID)
		}
		switch task.Decision {
		case DecisionApprove:
			m.ApprovedCount++
		case DecisionReject:
			m.RejectedCount++
		default:
			return Metrics{}, fmt.Errorf("%w: task %s has unknown decision %q", ErrCorruptData, task.TaskID, task.Decision)
		}
		m.TasksConsidered++
		m.RatingSum += *task.Rating

		if task.DueDate != nil {
			m.DueDatedCount++
			if task.CompletedAt != nil && !task.CompletedAt.After(*task.DueDate) {
				m.OnTimeCount++
			}
		}
	}

	if m.TasksConsidered > 0 {
		m.AverageRating = round(m.averageRating(), 2)
	}
	if m.DueDatedCount > 0 {
		m.OnTimeRate = round(m.onTimeRate(), 4)
	}
	return m, nil
}

// Components scores metrics under the policy. Each component is clamped to
// [0, its maximum] and rounded to cents before summing, so the total is
// always within [0, 100] regardless of input.
func (p Policy) Components(m Metrics) Components {
	var c Components

	if m.TasksConsidered > 0 {
		c.TaskRating = m.averageRating() / 5 * p.TaskRatingMax
		c.Completion = float64(m.ApprovedCount) / float64(m.TasksConsidered) * p.CompletionMax
	}
	rate := clamp(m.onTimeRate(), 0, 1)
	c.Consistency = p.ConsistencyMax * math.Pow(rate, p.ConsistencyExponent)
	c.Disciplinary = p.DisciplinaryMax - p.WarningPenalty*float64(max(0, m.WarningCount))

	c.TaskRating = round(clamp(c.TaskRating, 0, p.TaskRatingMax), 2)
	c.Completion = round(clamp(c.Completion, 0, p.CompletionMax), 2)
	c.Consistency = round(clamp(c.Consistency, 0, p.ConsistencyMax), 2)
	c.Disciplinary = round(clamp(c.Disciplinary, 0, p.DisciplinaryMax), 2)
	c.Total = round(clamp(c.TaskRating+c.Completion+c.Consistency+c.Disciplinary, 0, 100), 2)
	return c
}

// Score builds an unsaved snapshot for the employee and period.
func (p Policy) Score(employeeID string, period Period, m Metrics) EmployeeScore {
	c := p.Components(m)
	return EmployeeScore{
		EmployeeID:        employeeID,
		PeriodStart:       period.Start,
		PeriodEnd:         period.End,
		TaskRatingScore:   c.TaskRating,
		CompletionScore:   c.Completion,
		ConsistencyScore:  c.Consistency,
		DisciplinaryScore: c.Disciplinary,
		TotalScore:        c.Total,
		Grade:             p.Grade(c.Total),
		Metrics:           m,
	}
}

// sameResult reports whether two snapshots carry identical values.
func sameResult(a, b EmployeeScore) bool {
	return a.EmployeeID == b.EmployeeID &&
		a.PeriodStart.Equal(b.PeriodStart) &&
		a.PeriodEnd.Equal(b.PeriodEnd) &&
		a.Metrics == b.Metrics &&
		a.TaskRatingScore == b.TaskRatingScore &&
		a.CompletionScore == b.CompletionScore &&
		a.ConsistencyScore == b.ConsistencyScore &&
		a.DisciplinaryScore == b.DisciplinaryScore &&
		a.TotalScore == b.TotalScore &&
		a.Grade == b.Grade
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
