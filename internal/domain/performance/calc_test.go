package performance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildMetrics(t *testing.T) {
	reviewed := []ReviewedTask{
		{TaskID: "t1", Decision: DecisionApprove, Rating: rating(5), DueDate: at(10), CompletedAt: at(9)},
		{TaskID: "t2", Decision: DecisionApprove, Rating: rating(4), DueDate: at(10), CompletedAt: at(11)},
		{TaskID: "t3", Decision: DecisionReject, Rating: rating(2)},
	}
	m, err := BuildMetrics(reviewed, 1)
	require.NoError(t, err)
	require.Equal(t, 3, m.TasksConsidered)
	require.Equal(t, 2, m.ApprovedCount)
	require.Equal(t, 1, m.RejectedCount)
	require.Equal(t, 3.67, m.AverageRating)
	require.Equal(t, 0.5, m.OnTimeRate)
	require.Equal(t, 1, m.WarningCount)
	require.Equal(t, 11, m.RatingSum)
	require.Equal(t, 2, m.DueDatedCount)
	require.Equal(t, 1, m.OnTimeCount)
}

func TestTaskRatingUsesUnroundedAverage(t *testing.T) {
	m, err := BuildMetrics([]ReviewedTask{
		{TaskID: "t1", Decision: DecisionApprove, Rating: rating(5)},
		{TaskID: "t2", Decision: DecisionApprove, Rating: rating(5)},
		{TaskID: "t3", Decision: DecisionApprove, Rating: rating(4)},
	}, 0)
	require.NoError(t, err)
	require.Equal(t, 4.67, m.AverageRating)

	c := DefaultPolicy().Components(m)
	require.Equal(t, 37.33, c.TaskRating)

	m.RatingSum = 0
	require.Equal(t, 37.36, DefaultPolicy().Components(m).TaskRating)
}

func TestBuildMetricsCorruptRating(t *testing.T) {
	_, err := BuildMetrics([]ReviewedTask{{TaskID: "t1", Decision: DecisionApprove}}, 0)
	require.ErrorIs(t, err, ErrCorruptData)

	_, err = BuildMetrics([]ReviewedTask{{TaskID: "t1", Decision: DecisionApprove, Rating: rating(7)}}, 0)
	require.ErrorIs(t, err, ErrCorruptData)

	_, err = BuildMetrics([]ReviewedTask{{TaskID: "t1", Decision: "MAYBE", Rating: rating(3)}}, 0)
	require.ErrorIs(t, err, ErrCorruptData)
}

func TestComponentsPerfectRecord(t *testing.T) {
	p := DefaultPolicy()
	c := p.Components(Metrics{TasksConsidered: 4, ApprovedCount: 4, AverageRating: 5, OnTimeRate: 1})
	require.Equal(t, Components{TaskRating: 40, Completion: 25, Consistency: 20, Disciplinary: 15, Total: 100}, c)
	require.Equal(t, GradeA, p.Grade(c.Total))
}

func TestComponentsNoActivity(t *testing.T) {
	p := DefaultPolicy()
	c := p.Components(Metrics{})
	require.Zero(t, c.TaskRating)
	require.Zero(t, c.Completion)
	require.Zero(t, c.Consistency)
	require.Equal(t, 15.0, c.Disciplinary)
	require.Equal(t, 15.0, c.Total)
	require.Equal(t, GradeF, p.Grade(c.Total))
}

func TestComponentsWarningsFloorAtZero(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, 5.0, p.Components(Metrics{WarningCount: 2}).Disciplinary)
	require.Zero(t, p.Components(Metrics{WarningCount: 9}).Disciplinary)
	require.Equal(t, 15.0, p.Components(Metrics{WarningCount: -3}).Disciplinary)
}

func TestComponentsStayWithinBounds(t *testing.T) {
	p := DefaultPolicy()
	c := p.Components(Metrics{TasksConsidered: 1, ApprovedCount: 5, AverageRating: 9, OnTimeRate: 3})
	require.Equal(t, 40.0, c.TaskRating)
	require.Equal(t, 25.0, c.Completion)
	require.Equal(t, 20.0, c.Consistency)
	require.LessOrEqual(t, c.Total, 100.0)
}

func TestGradeBoundaries(t *testing.T) {
	p := DefaultPolicy()
	cases := map[float64]string{
		100: GradeA, 90: GradeA, 89.99: GradeB, 80: GradeB,
		79.99: GradeC, 70: GradeC, 60: GradeD, 59.99: GradeF, 0: GradeF,
	}
	for total, want := range cases {
		require.Equal(t, want, p.Grade(total), "total %.2f", total)
	}
}

func TestConsistencyExponent(t *testing.T) {
	p := DefaultPolicy()
	p.ConsistencyExponent = 2
	c := p.Components(Metrics{OnTimeRate: 0.5})
	require.Equal(t, 5.0, c.Consistency)
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
taskRatingMax: 50
completionMax: 20
consistencyMax: 15
disciplinaryMax: 15
warningPenalty: 3
`), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Equal(t, 50.0, p.TaskRatingMax)
	require.Equal(t, 3.0, p.WarningPenalty)
	require.Equal(t, 1.0, p.ConsistencyExponent)
	require.Len(t, p.Grades, 4)

	def, err := LoadPolicy("")
	require.NoError(t, err)
	require.Equal(t, DefaultPolicy(), def)
}

func TestLoadPolicyRejectsBadSum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("taskRatingMax: 60\n"), 0o600))
	_, err := LoadPolicy(path)
	require.ErrorContains(t, err, "sum to 100")
}

func TestPolicyValidateGrades(t *testing.T) {
	p := DefaultPolicy()
	p.Grades = []GradeBand{{Grade: GradeB, Min: 80}, {Grade: GradeA, Min: 90}}
	require.Error(t, p.Validate())

	p.Grades = []GradeBand{{Grade: GradeF, Min: 10}}
	require.Error(t, p.Validate())
}

func TestMonthOf(t *testing.T) {
	p := MonthOf(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC))
	require.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), p.Start)
	require.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), p.End)
	require.NoError(t, p.Validate())
	require.ErrorIs(t, Period{Start: p.End, End: p.Start}.Validate(), ErrInvalidPeriod)
}
