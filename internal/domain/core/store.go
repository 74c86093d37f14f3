package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `
           e.id,
           COALESCE(e.user_id::text, ''),
           e.first_name, e.last_name, e.email,
           COALESCE(e.job_title, ''),
           COALESCE(e.department_id::text, ''),
           COALESCE(d.name, ''),
           COALESCE(e.manager_id::text, ''),
           e.status, e.created_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.UserID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.JobTitle,
		&emp.DepartmentID, &emp.DepartmentName, &emp.ManagerID, &emp.Status, &emp.CreatedAt,
	)
	return emp, err
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM role_permissions rp
    JOIN permissions p ON rp.permission_id = p.id
    WHERE rp.role_id = $1 AND p.key = $2
  `, roleID, permission).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) GetEmployee(ctx context.Context, tenantID, employeeID string) (*Employee, error) {
	emp, err := scanEmployee(s.DB.QueryRow(ctx, `
    SELECT`+employeeColumns+`
    FROM employees e
    LEFT JOIN departments d ON d.id = e.department_id
    WHERE e.tenant_id = $1 AND e.id::text = $2
  `, tenantID, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) GetEmployeeByUserID(ctx context.Context, tenantID, userID string) (*Employee, error) {
	emp, err := scanEmployee(s.DB.QueryRow(ctx, `
    SELECT`+employeeColumns+`
    FROM employees e
    LEFT JOIN departments d ON d.id = e.department_id
    WHERE e.tenant_id = $1 AND e.user_id::text = $2
  `, tenantID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployeesByIDs returns the employees found among ids, keyed by id.
func (s *Store) ListEmployeesByIDs(ctx context.Context, tenantID string, ids []string) (map[string]Employee, error) {
	out := make(map[string]Employee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT`+employeeColumns+`
    FROM employees e
    LEFT JOIN departments d ON d.id = e.department_id
    WHERE e.tenant_id = $1 AND e.id::text = ANY($2)
  `, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out[emp.ID] = emp
	}
	return out, rows.Err()
}

// IsInManagerChain reports whether managerEmployeeID appears anywhere above
// employeeID in the reporting chain.
func (s *Store) IsInManagerChain(ctx context.Context, tenantID, managerEmployeeID, employeeID string) (bool, error) {
	var found bool
	err := s.DB.QueryRow(ctx, `
    WITH RECURSIVE chain AS (
      SELECT manager_id, 1 AS depth
      FROM employees
      WHERE tenant_id = $1 AND id::text = $2
      UNION ALL
      SELECT e.manager_id, c.depth + 1
      FROM employees e
      JOIN chain c ON e.id = c.manager_id
      WHERE e.tenant_id = $1 AND c.depth < 32
    )
    SELECT EXISTS (SELECT 1 FROM chain WHERE manager_id::text = $3)
  `, tenantID, employeeID, managerEmployeeID).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// ListReportIDs returns every employee below managerEmployeeID in the chain.
func (s *Store) ListReportIDs(ctx context.Context, tenantID, managerEmployeeID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    WITH RECURSIVE reports AS (
      SELECT id, 1 AS depth
      FROM employees
      WHERE tenant_id = $1 AND manager_id::text = $2
      UNION ALL
      SELECT e.id, r.depth + 1
      FROM employees e
      JOIN reports r ON e.manager_id = r.id
      WHERE e.tenant_id = $1 AND r.depth < 32
    )
    SELECT DISTINCT id::text FROM reports
  `, tenantID, managerEmployeeID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (s *Store) ListActiveEmployeeIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text
    FROM employees
    WHERE tenant_id = $1 AND status = 'active'
    ORDER BY id
  `, tenantID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (s *Store) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id::text FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
