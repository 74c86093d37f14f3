package performance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taskscore/internal/domain/core"
)

type memStore struct {
	mu       sync.Mutex
	seq      int
	clock    time.Time
	reviewed map[string][]ReviewedTask
	warnings map[string]int
	scores   []EmployeeScore
	panicOn  string
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		reviewed: map[string][]ReviewedTask{},
		warnings: map[string]int{},
	}
}

func (m *memStore) ReviewedTasks(ctx context.Context, tenantID, employeeID string, start, end time.Time) ([]ReviewedTask, error) {
	if employeeID == m.panicOn {
		panic("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ReviewedTask
	for _, t := range m.reviewed[employeeID] {
		if !t.ReviewedAt.Before(start) && t.ReviewedAt.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) WarningCount(ctx context.Context, tenantID, employeeID string, start, end time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warnings[employeeID], nil
}

func (m *memStore) AppendScore(ctx context.Context, tenantID string, score EmployeeScore) (EmployeeScore, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, prev := range m.history(score.EmployeeID) {
		if prev.PeriodStart.Equal(score.PeriodStart) && prev.PeriodEnd.Equal(score.PeriodEnd) {
			if sameResult(prev, score) {
				return prev, false, nil
			}
			break
		}
	}
	m.seq++
	m.clock = m.clock.Add(time.Second)
	score.ID = fmt.Sprintf("score-%d", m.seq)
	score.CalculatedAt = m.clock
	m.scores = append(m.scores, score)
	return score, true, nil
}

func (m *memStore) history(employeeID string) []EmployeeScore {
	var out []EmployeeScore
	for _, s := range m.scores {
		if s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CalculatedAt.After(out[j].CalculatedAt) })
	return out
}

func (m *memStore) LatestScore(ctx context.Context, tenantID, employeeID string) (EmployeeScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history(employeeID)
	if len(h) == 0 {
		return EmployeeScore{}, ErrScoreNotFound
	}
	return h[0], nil
}

func (m *memStore) ScoreHistory(ctx context.Context, tenantID, employeeID string, limit int) ([]EmployeeScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history(employeeID)
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (m *memStore) LatestScores(ctx context.Context, tenantID string) ([]EmployeeScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []EmployeeScore
	for i := len(m.scores) - 1; i >= 0; i-- {
		s := m.scores[i]
		if !seen[s.EmployeeID] {
			seen[s.EmployeeID] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scores)
}

type fakeDirectory struct {
	employees map[string]core.Employee
	order     []string
}

func newFakeDirectory(emps ...core.Employee) *fakeDirectory {
	d := &fakeDirectory{employees: map[string]core.Employee{}}
	for _, e := range emps {
		if e.Status == "" {
			e.Status = core.EmployeeStatusActive
		}
		d.employees[e.ID] = e
		d.order = append(d.order, e.ID)
	}
	return d
}

func (d *fakeDirectory) GetEmployee(ctx context.Context, tenantID, employeeID string) (*core.Employee, error) {
	e, ok := d.employees[employeeID]
	if !ok {
		return nil, core.ErrEmployeeNotFound
	}
	return &e, nil
}

func (d *fakeDirectory) ListActiveEmployeeIDs(ctx context.Context, tenantID string) ([]string, error) {
	var out []string
	for _, id := range d.order {
		if d.employees[id].Status == core.EmployeeStatusActive {
			out = append(out, id)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListEmployeesByIDs(ctx context.Context, tenantID string, ids []string) (map[string]core.Employee, error) {
	out := map[string]core.Employee{}
	for _, id := range ids {
		if e, ok := d.employees[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type memCache struct {
	mu    sync.Mutex
	gen   int
	items map[string][]RankedEntry
	sets  int
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]RankedEntry{}}
}

func (c *memCache) Key(ctx context.Context, tenantID, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%s:%d:%s", tenantID, c.gen, name), nil
}

func (c *memCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return false, nil
	}
	*dest.(*[]RankedEntry) = v
	return true, nil
}

func (c *memCache) Set(ctx context.Context, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value.([]RankedEntry)
	c.sets++
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return nil
}

func rating(v int) *int { return &v }

func at(day int) *time.Time {
	t := time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC)
	return &t
}
