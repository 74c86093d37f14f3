package performancehandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"taskscore/internal/domain/access"
	"taskscore/internal/domain/audit"
	"taskscore/internal/domain/auth"
	"taskscore/internal/domain/core"
	"taskscore/internal/domain/performance"
	"taskscore/internal/platform/metrics"
	"taskscore/internal/transport/http/middleware"
)

var march = performance.Period{
	Start: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
}

type fakeScores struct {
	period      performance.Period
	deadline    time.Time
	calculated  []string
	err         error
	batch       performance.BatchResult
	filter      performance.LeaderboardFilter
	historySize int
	unchanged   bool
}

func (f *fakeScores) CurrentPeriod() performance.Period { return march }

func (f *fakeScores) LiveScore(_ context.Context, _, employeeID string) (performance.EmployeeScore, error) {
	if f.err != nil {
		return performance.EmployeeScore{}, f.err
	}
	return performance.EmployeeScore{ID: "s1", EmployeeID: employeeID, TotalScore: 88, Grade: "B"}, nil
}

func (f *fakeScores) History(_ context.Context, _, _ string, limit int) ([]performance.EmployeeScore, error) {
	f.historySize = limit
	return []performance.EmployeeScore{}, f.err
}

func (f *fakeScores) Scorecard(context.Context, string, string) ([]byte, error) {
	return []byte("%PDF-1.3 fake"), f.err
}

func (f *fakeScores) Calculate(_ context.Context, _, employeeID string, period performance.Period) (performance.EmployeeScore, bool, error) {
	f.period = period
	f.calculated = append(f.calculated, employeeID)
	if f.err != nil {
		return performance.EmployeeScore{}, false, f.err
	}
	return performance.EmployeeScore{ID: "s2", EmployeeID: employeeID, PeriodStart: period.Start, PeriodEnd: period.End, TotalScore: 72.5, Grade: "C"}, !f.unchanged, nil
}

func (f *fakeScores) CalculateAll(_ context.Context, _ string, period performance.Period, deadline time.Time) (performance.BatchResult, error) {
	f.period = period
	f.deadline = deadline
	return f.batch, f.err
}

func (f *fakeScores) Leaderboard(_ context.Context, _ string, filter performance.LeaderboardFilter) ([]performance.RankedEntry, error) {
	f.filter = filter
	return []performance.RankedEntry{{Rank: 1, EmployeeID: "e-ann", TotalScore: 91}}, f.err
}

// fakeAccess grants review rights over the employees listed in reports.
type fakeAccess struct {
	role    string
	reports map[string]bool
}

func (f *fakeAccess) Actor(_ context.Context, user auth.UserContext) (access.Actor, error) {
	return access.Actor{UserID: user.UserID, TenantID: user.TenantID, RoleName: f.role, EmployeeID: "e-self"}, nil
}

func (f *fakeAccess) For(_ context.Context, actor access.Actor, employeeID string) (access.Capability, error) {
	var caps access.Capability
	if employeeID == actor.EmployeeID {
		caps |= access.CapAssignee
	}
	if actor.IsHR() || f.reports[employeeID] {
		caps |= access.CapManagerLevel | access.CapReviewer
	}
	return caps, nil
}

type fakeJobs struct {
	queued int
	ran    int
}

func (f *fakeJobs) RunNow(ctx context.Context, _, _ string, run func(context.Context) (any, error)) (any, error) {
	f.ran++
	return run(ctx)
}

func (f *fakeJobs) Enqueue(string, string, func(context.Context) (any, error)) bool {
	f.queued++
	return true
}

type fakeDirectory struct{}

func (fakeDirectory) GetEmployee(_ context.Context, _, employeeID string) (*core.Employee, error) {
	return &core.Employee{ID: employeeID, UserID: "u-" + employeeID}, nil
}

type fakeAudit struct{ actions []string }

func (f *fakeAudit) Record(_ context.Context, _, _, action, _, _, _, _ string, _, _ any) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakeNotifier struct{ users []string }

func (f *fakeNotifier) Create(_ context.Context, _, userID, _, _, _ string) error {
	f.users = append(f.users, userID)
	return nil
}

type allowAll struct{}

func (allowAll) HasPermission(context.Context, string, string) (bool, error) { return true, nil }

type fixture struct {
	scores  *fakeScores
	access  *fakeAccess
	jobs    *fakeJobs
	audit   *fakeAudit
	notify  *fakeNotifier
	metrics *metrics.Collector
	router  http.Handler
}

func newFixture(role string, reports ...string) *fixture {
	f := &fixture{
		scores:  &fakeScores{},
		access:  &fakeAccess{role: role, reports: map[string]bool{}},
		jobs:    &fakeJobs{},
		audit:   &fakeAudit{},
		notify:  &fakeNotifier{},
		metrics: metrics.New(),
	}
	for _, id := range reports {
		f.access.reports[id] = true
	}
	h := NewHandler(f.scores, f.access, f.jobs, fakeDirectory{}, allowAll{}, f.audit, f.notify, f.metrics)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "u1", TenantID: "tenant", RoleID: "r", RoleName: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	f.router = r
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestScoreVisibility(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		reports    []string
		employeeID string
		wantStatus int
	}{
		{name: "own score", role: auth.RoleEmployee, employeeID: "e-self", wantStatus: http.StatusOK},
		{name: "peer score", role: auth.RoleEmployee, employeeID: "e-peer", wantStatus: http.StatusForbidden},
		{name: "manager of report", role: auth.RoleManager, reports: []string{"e-peer"}, employeeID: "e-peer", wantStatus: http.StatusOK},
		{name: "manager outside chain", role: auth.RoleManager, employeeID: "e-peer", wantStatus: http.StatusForbidden},
		{name: "hr", role: auth.RoleHR, employeeID: "e-peer", wantStatus: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(tc.role, tc.reports...)
			rec := f.do(http.MethodGet, "/performance/scores/"+tc.employeeID)
			require.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestLiveScoreNotFound(t *testing.T) {
	f := newFixture(auth.RoleHR)
	f.scores.err = performance.ErrScoreNotFound

	rec := f.do(http.MethodGet, "/performance/scores/e-ann")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestHistoryValidatesLimit(t *testing.T) {
	f := newFixture(auth.RoleEmployee)

	rec := f.do(http.MethodGet, "/performance/scores/e-self/history?limit=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/performance/scores/e-self/history?limit=6")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 6, f.scores.historySize)
}

func TestEmployeeCannotRecalculateOwnScore(t *testing.T) {
	f := newFixture(auth.RoleEmployee)

	rec := f.do(http.MethodPost, "/performance/scores/e-self/recalculate")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, f.scores.calculated)
}

func TestRecalculateDefaultsToCurrentPeriod(t *testing.T) {
	f := newFixture(auth.RoleManager, "e-ann")

	rec := f.do(http.MethodPost, "/performance/scores/e-ann/recalculate")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, march, f.scores.period)
	require.Equal(t, []string{audit.ActionScoreCalculate}, f.audit.actions)
	require.Equal(t, []string{"u-e-ann"}, f.notify.users)
	require.Equal(t, uint64(1), f.metrics.Snapshot()["scoreRunsTotal"])
}

func TestUnchangedRecalculationSkipsAuditAndNotify(t *testing.T) {
	f := newFixture(auth.RoleManager, "e-ann")
	f.scores.unchanged = true

	rec := f.do(http.MethodPost, "/performance/scores/e-ann/recalculate")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"s2"`)
	require.Empty(t, f.audit.actions)
	require.Empty(t, f.notify.users)
	require.Equal(t, uint64(1), f.metrics.Snapshot()["scoreRunsTotal"])
}

func TestRecalculateWithExplicitPeriod(t *testing.T) {
	f := newFixture(auth.RoleHR)

	rec := f.do(http.MethodPost, "/performance/scores/e-ann/recalculate?periodStart=2026-01-01&periodEnd=2026-04-01")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), f.scores.period.Start)
	require.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), f.scores.period.End)
}

func TestRecalculateRejectsBadPeriod(t *testing.T) {
	tests := []string{
		"?periodStart=2026-01-01",
		"?periodStart=2026-04-01&periodEnd=2026-01-01",
		"?periodStart=2026-04-01&periodEnd=2026-04-01",
		"?periodStart=april&periodEnd=2026-05-01",
	}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			f := newFixture(auth.RoleHR)
			rec := f.do(http.MethodPost, "/performance/scores/e-ann/recalculate"+query)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
			require.Empty(t, f.scores.calculated)
		})
	}
}

func TestRecalculateAllIsHROnly(t *testing.T) {
	f := newFixture(auth.RoleManager)

	rec := f.do(http.MethodPost, "/performance/scores/recalculate")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, f.jobs.ran)
}

func TestRecalculateAllRunsAsJob(t *testing.T) {
	f := newFixture(auth.RoleHR)
	f.scores.batch = performance.BatchResult{Period: march, Succeeded: 2, Failed: 1, Skipped: []string{}}

	before := time.Now()
	rec := f.do(http.MethodPost, "/performance/scores/recalculate?timeout=30s")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.jobs.ran)
	require.WithinDuration(t, before.Add(30*time.Second), f.scores.deadline, 5*time.Second)
	require.Equal(t, []string{audit.ActionScoreBatch}, f.audit.actions)
	require.Equal(t, uint64(1), f.metrics.Snapshot()["scoreFailuresTotal"])

	var out struct {
		Data performance.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 2, out.Data.Succeeded)
}

func TestRecalculateAllAsync(t *testing.T) {
	f := newFixture(auth.RoleHR)

	rec := f.do(http.MethodPost, "/performance/scores/recalculate?async=true")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, f.jobs.queued)
	require.Zero(t, f.jobs.ran)
}

func TestRecalculateAllRejectsTimeout(t *testing.T) {
	f := newFixture(auth.RoleHR)

	rec := f.do(http.MethodPost, "/performance/scores/recalculate?timeout=2h")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardPassesFilter(t *testing.T) {
	f := newFixture(auth.RoleEmployee)

	rec := f.do(http.MethodGet, "/performance/leaderboard?departmentId=d-ops&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, performance.LeaderboardFilter{DepartmentID: "d-ops", Limit: 5}, f.scores.filter)

	rec = f.do(http.MethodGet, "/performance/leaderboard?limit=x")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScorecardServesPDF(t *testing.T) {
	f := newFixture(auth.RoleEmployee)

	rec := f.do(http.MethodGet, "/performance/scores/e-self/scorecard.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "scorecard-e-self.pdf")
	require.Equal(t, "%PDF-1.3 fake", rec.Body.String())
}
