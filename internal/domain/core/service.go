package core

import "context"

type StoreAPI interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
	GetEmployee(ctx context.Context, tenantID, employeeID string) (*Employee, error)
	GetEmployeeByUserID(ctx context.Context, tenantID, userID string) (*Employee, error)
	ListEmployeesByIDs(ctx context.Context, tenantID string, ids []string) (map[string]Employee, error)
	IsInManagerChain(ctx context.Context, tenantID, managerEmployeeID, employeeID string) (bool, error)
	ListReportIDs(ctx context.Context, tenantID, managerEmployeeID string) ([]string, error)
	ListActiveEmployeeIDs(ctx context.Context, tenantID string) ([]string, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// Service is the read-only employee directory. Employee records are
// maintained elsewhere; nothing here writes to them.
type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.store.HasPermission(ctx, roleID, permission)
}

func (s *Service) GetEmployee(ctx context.Context, tenantID, employeeID string) (*Employee, error) {
	return s.store.GetEmployee(ctx, tenantID, employeeID)
}

func (s *Service) GetEmployeeByUserID(ctx context.Context, tenantID, userID string) (*Employee, error) {
	return s.store.GetEmployeeByUserID(ctx, tenantID, userID)
}

func (s *Service) ListEmployeesByIDs(ctx context.Context, tenantID string, ids []string) (map[string]Employee, error) {
	return s.store.ListEmployeesByIDs(ctx, tenantID, dedupe(ids))
}

func (s *Service) IsInManagerChain(ctx context.Context, tenantID, managerEmployeeID, employeeID string) (bool, error) {
	if managerEmployeeID == "" || employeeID == "" || managerEmployeeID == employeeID {
		return false, nil
	}
	return s.store.IsInManagerChain(ctx, tenantID, managerEmployeeID, employeeID)
}

func (s *Service) ListReportIDs(ctx context.Context, tenantID, managerEmployeeID string) ([]string, error) {
	return s.store.ListReportIDs(ctx, tenantID, managerEmployeeID)
}

func (s *Service) ListActiveEmployeeIDs(ctx context.Context, tenantID string) ([]string, error) {
	return s.store.ListActiveEmployeeIDs(ctx, tenantID)
}

func (s *Service) ListTenantIDs(ctx context.Context) ([]string, error) {
	return s.store.ListTenantIDs(ctx)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
