package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store defines read access to the role and permission tables.
type Store interface {
	EffectivePermissionsByEmail(ctx context.Context, email string) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EffectivePermissionsByEmail returns the distinct permission names reachable
// from the user with the given email through its role memberships. An unknown
// email yields an empty set, not an error.
func (s *PGStore) EffectivePermissionsByEmail(ctx context.Context, email string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE u.email = $1
		ORDER BY p.name`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// ListPermissions returns all permissions ordered by name.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

var _ Store = (*PGStore)(nil)
