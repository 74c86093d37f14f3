package db

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskscore/internal/domain/auth"
	"taskscore/internal/platform/config"
)

type grant struct {
	Role       string
	Permission string
}

// roleGrants flattens auth.RolePermissions into a stable order.
func roleGrants() []grant {
	roles := make([]string, 0, len(auth.RolePermissions))
	for role := range auth.RolePermissions {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var grants []grant
	for _, role := range roles {
		for _, perm := range auth.RolePermissions[role] {
			grants = append(grants, grant{Role: role, Permission: perm})
		}
	}
	return grants
}

// Seed creates the default tenant with its roles and permission grants in
// one transaction. Users and employees are provisioned by the directory
// service. Running it again is a no-op.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var tenantID string
		if err := tx.QueryRow(ctx, `
    INSERT INTO tenants (name) VALUES ($1)
    ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id::text
  `, cfg.SeedTenantName).Scan(&tenantID); err != nil {
			return fmt.Errorf("seed tenant: %w", err)
		}

		if _, err := tx.Exec(ctx, `
    INSERT INTO permissions (key)
    SELECT unnest($1::text[])
    ON CONFLICT (key) DO NOTHING
  `, auth.DefaultPermissions); err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}

		grants := roleGrants()
		roles := make([]string, len(grants))
		perms := make([]string, len(grants))
		for i, g := range grants {
			roles[i] = g.Role
			perms[i] = g.Permission
		}

		if _, err := tx.Exec(ctx, `
    INSERT INTO roles (tenant_id, name)
    SELECT DISTINCT $1::uuid, role_name FROM unnest($2::text[]) AS role_name
    ON CONFLICT (tenant_id, name) DO NOTHING
  `, tenantID, roles); err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}

		tag, err := tx.Exec(ctx, `
    INSERT INTO role_permissions (role_id, permission_id)
    SELECT r.id, p.id
    FROM unnest($2::text[], $3::text[]) AS g(role_name, perm_key)
    JOIN roles r ON r.tenant_id = $1::uuid AND r.name = g.role_name
    JOIN permissions p ON p.key = g.perm_key
    ON CONFLICT DO NOTHING
  `, tenantID, roles, perms)
		if err != nil {
			return fmt.Errorf("seed role permissions: %w", err)
		}

		slog.Info("seed applied", "tenant", cfg.SeedTenantName, "newGrants", tag.RowsAffected())
		return nil
	})
}
