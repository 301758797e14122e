package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dynart/userhub/internal/platform/db"
	"github.com/dynart/userhub/internal/shared"
)

// ErrUnknownRole indicates a role name that does not exist in the store.
var ErrUnknownRole = errors.New("users: unknown role")

// Store provides persistence for user management.
type Store interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (*User, error)
	EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, email, name, role string) (*User, error)
	Update(ctx context.Context, id int64, email, name string, role *string) (*User, error)
	Delete(ctx context.Context, id int64) error
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const selectUser = `
	SELECT u.id, u.email, u.display_name, u.created_at, u.updated_at,
	       COALESCE((SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
	                 WHERE ur.user_id = u.id ORDER BY r.id LIMIT 1), 'User')
	FROM users u`

// List returns all users with their assigned role, ordered by id.
func (s *PGStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, selectUser+` ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Get returns a single user or shared.ErrNotFound.
func (s *PGStore) Get(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailInUse reports whether another user already holds the email.
func (s *PGStore) EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`,
		email, excludeID).Scan(&exists)
	return exists, err
}

// Create inserts a user and its role assignment in one transaction.
func (s *PGStore) Create(ctx context.Context, email, name, role string) (*User, error) {
	var user *User
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		var u User
		err := tx.QueryRow(ctx, `
			INSERT INTO users (email, display_name, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			RETURNING id, email, display_name, created_at, updated_at`,
			email, name, now).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("users: insert user: %w", err)
		}
		if err := assignRole(ctx, tx, u.ID, role); err != nil {
			return err
		}
		u.Role = role
		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update rewrites the user's fields and, when role is non-nil, replaces all
// existing role assignments with exactly one row for the named role. A nil
// role leaves assignments untouched; absence is not the same as empty.
func (s *PGStore) Update(ctx context.Context, id int64, email, name string, role *string) (*User, error) {
	var user *User
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		tag, err := tx.Exec(ctx, `
			UPDATE users SET email = $2, display_name = $3, updated_at = $4 WHERE id = $1`,
			id, email, name, now)
		if err != nil {
			return fmt.Errorf("users: update user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}

		if role != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
				return fmt.Errorf("users: clear roles: %w", err)
			}
			if err := assignRole(ctx, tx, id, *role); err != nil {
				return err
			}
		}

		var u User
		err = tx.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id).
			Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt, &u.Role)
		if err != nil {
			return fmt.Errorf("users: reload user: %w", err)
		}
		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the user row; external logins and role assignments cascade.
func (s *PGStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func assignRole(ctx context.Context, tx pgx.Tx, userID int64, role string) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2`, userID, role)
	if err != nil {
		return fmt.Errorf("users: assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
