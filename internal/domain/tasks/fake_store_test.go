package tasks

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"taskscore/internal/domain/core"
)

type memStore struct {
	mu     sync.Mutex
	seq    int
	tasks  map[string]Task
	proofs map[string][]Proof
}

func newMemStore() *memStore {
	return &memStore{tasks: map[string]Task{}, proofs: map[string][]Proof{}}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = m.nextID("task")
	task.Version = 1
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memStore) GetTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok || task.TenantID != tenantID {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (m *memStore) matching(q Query) []Task {
	var out []Task
	for _, task := range m.tasks {
		if task.TenantID != q.TenantID {
			continue
		}
		if !q.AllAssignees && !slices.Contains(q.AssigneeIDs, task.AssigneeID) {
			continue
		}
		if q.ExcludeAssignee != "" && task.AssigneeID == q.ExcludeAssignee {
			continue
		}
		if q.Status != "" && task.Status != q.Status {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListTasks(ctx context.Context, q Query) ([]Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(q)
	start := min(q.Offset, len(all))
	end := min(start+q.Limit, len(all))
	return all[start:end], len(all), nil
}

func (m *memStore) CountByStatus(ctx context.Context, q Query) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[Status]int{}
	for _, task := range m.matching(q) {
		counts[task.Status]++
	}
	return counts, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, tenantID, taskID string, from Status, version int, to Status) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok || task.Status != from || task.Version != version {
		return Task{}, ErrStaleState
	}
	task.Status = to
	task.Version++
	m.tasks[taskID] = task
	return task, nil
}

func (m *memStore) ApplyReview(ctx context.Context, tenantID, taskID string, version int, outcome ReviewOutcome) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok || task.Status != StatusWaitingForReview || task.Version != version {
		return Task{}, ErrStaleState
	}
	rating := outcome.Rating
	reviewedAt := outcome.ReviewedAt
	task.Status = outcome.Status
	task.ReviewDecision = outcome.Decision
	task.ReviewRating = &rating
	task.ReviewComment = outcome.Comment
	task.ReviewedBy = outcome.ReviewedBy
	task.ReviewedAt = &reviewedAt
	if outcome.CompletedAt != nil {
		task.CompletedAt = outcome.CompletedAt
	}
	task.Version++
	m.tasks[taskID] = task
	return task, nil
}

func (m *memStore) InsertProofs(ctx context.Context, tenantID, taskID string, proofs []Proof) ([]Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status == StatusApproved {
		return nil, ErrEvidenceFrozen
	}
	out := make([]Proof, 0, len(proofs))
	for _, p := range proofs {
		p.ID = m.nextID("proof")
		p.CreatedAt = time.Now()
		out = append(out, p)
	}
	m.proofs[taskID] = append(m.proofs[taskID], out...)
	return out, nil
}

func (m *memStore) CountProofs(ctx context.Context, tenantID, taskID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.proofs[taskID]), nil
}

func (m *memStore) ListProofs(ctx context.Context, tenantID, taskID string) ([]Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.proofs[taskID]), nil
}

func (m *memStore) GetProof(ctx context.Context, tenantID, taskID, proofID string) (Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.proofs[taskID] {
		if p.ID == proofID {
			return p, nil
		}
	}
	return Proof{}, ErrProofNotFound
}

// org: boss -> lead -> dev, plus an unrelated peer and hr.
type fakeDirectory struct {
	employees map[string]core.Employee
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{employees: map[string]core.Employee{
		"boss": {ID: "boss", UserID: "u-boss"},
		"lead": {ID: "lead", UserID: "u-lead", ManagerID: "boss"},
		"dev":  {ID: "dev", UserID: "u-dev", ManagerID: "lead"},
		"peer": {ID: "peer", UserID: "u-peer"},
		"hr":   {ID: "hr", UserID: "u-hr"},
	}}
}

func (f *fakeDirectory) GetEmployee(ctx context.Context, tenantID, employeeID string) (*core.Employee, error) {
	emp, ok := f.employees[employeeID]
	if !ok {
		return nil, core.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (f *fakeDirectory) GetEmployeeByUserID(ctx context.Context, tenantID, userID string) (*core.Employee, error) {
	for _, emp := range f.employees {
		if emp.UserID == userID {
			return &emp, nil
		}
	}
	return nil, core.ErrEmployeeNotFound
}

func (f *fakeDirectory) IsInManagerChain(ctx context.Context, tenantID, managerEmployeeID, employeeID string) (bool, error) {
	for cur := f.employees[employeeID].ManagerID; cur != ""; cur = f.employees[cur].ManagerID {
		if cur == managerEmployeeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDirectory) ListReportIDs(ctx context.Context, tenantID, managerEmployeeID string) ([]string, error) {
	var out []string
	for id := range f.employees {
		if ok, _ := f.IsInManagerChain(ctx, tenantID, managerEmployeeID, id); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
