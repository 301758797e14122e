package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dynart/userhub/internal/platform/db"
	"github.com/dynart/userhub/internal/shared"
)

// seedVersion is bumped whenever the fixture below changes shape.
const seedVersion = 1

// roleGrants fixes the authorization surface of the whole system: which role
// bundles which permissions. Roles and permissions are immutable at runtime.
var roleGrants = map[string][]string{
	"User": {shared.PermUsersRead},
	"Admin": {
		shared.PermUsersRead,
		shared.PermUsersWrite,
		shared.PermAdminAccess,
	},
}

// Seed applies the role and permission fixtures once at store setup. Every
// statement is idempotent, so repeated startups leave the tables unchanged.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var applied int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM rbac_seed_versions`).Scan(&applied)
		if err != nil {
			return fmt.Errorf("rbac: read seed version: %w", err)
		}
		if applied >= seedVersion {
			return nil
		}

		for _, name := range shared.CorePermissions() {
			if _, err := tx.Exec(ctx,
				`INSERT INTO permissions (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
				return fmt.Errorf("rbac: seed permission %s: %w", name, err)
			}
		}
		for role, grants := range roleGrants {
			if _, err := tx.Exec(ctx,
				`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, role); err != nil {
				return fmt.Errorf("rbac: seed role %s: %w", role, err)
			}
			for _, grant := range grants {
				if _, err := tx.Exec(ctx, `
					INSERT INTO role_permissions (role_id, permission_id)
					SELECT r.id, p.id FROM roles r, permissions p
					WHERE r.name = $1 AND p.name = $2
					ON CONFLICT DO NOTHING`, role, grant); err != nil {
					return fmt.Errorf("rbac: seed grant %s -> %s: %w", role, grant, err)
				}
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO rbac_seed_versions (version) VALUES ($1)`, seedVersion); err != nil {
			return fmt.Errorf("rbac: record seed version: %w", err)
		}
		return nil
	})
}
