package identity

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

// DefaultRole is assigned to every user created through external sign-in.
const DefaultRole = "User"

// Store defines persistence operations for the identity module.
type Store interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SignIn(ctx context.Context, ext ExternalIdentity) (*User, bool, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// FindByID fetches a user by primary key.
func (s *PGStore) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, created_at, updated_at, last_login_at
		FROM users WHERE id = $1`, id))
}

// FindByEmail fetches a user by email, the join key across identity providers.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, created_at, updated_at, last_login_at
		FROM users WHERE email = $1`, email))
}

// SignIn runs the session-bootstrap writes as one transaction: find or create
// the user by email, default-assign the User role on creation, refresh the
// display name on revisit, link the external identity additively, and stamp
// the last login. A failure at any step leaves the store unchanged. The bool
// result reports whether a new user row was created.
func (s *PGStore) SignIn(ctx context.Context, ext ExternalIdentity) (*User, bool, error) {
	var user *User
	var created bool
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		u, err := scanUserRow(tx.QueryRow(ctx, `
			SELECT id, email, display_name, created_at, updated_at, last_login_at
			FROM users WHERE email = $1 FOR UPDATE`, ext.Email))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			u, err = scanUserRow(tx.QueryRow(ctx, `
				INSERT INTO users (email, display_name, created_at, updated_at)
				VALUES ($1, $2, $3, $3)
				RETURNING id, email, display_name, created_at, updated_at, last_login_at`,
				ext.Email, ext.DisplayName, now))
			if err != nil {
				return fmt.Errorf("identity: create user: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_roles (user_id, role_id)
				SELECT $1, id FROM roles WHERE name = $2`, u.ID, DefaultRole); err != nil {
				return fmt.Errorf("identity: assign default role: %w", err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("identity: find user: %w", err)
		default:
			// Last write from the identity provider wins.
			if _, err := tx.Exec(ctx, `
				UPDATE users SET display_name = $2, updated_at = $3 WHERE id = $1`,
				u.ID, ext.DisplayName, now); err != nil {
				return fmt.Errorf("identity: refresh display name: %w", err)
			}
			u.DisplayName = ext.DisplayName
			u.UpdatedAt = now
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO external_logins (user_id, provider, provider_key, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (provider, provider_key) DO NOTHING`,
			u.ID, ext.Provider, ext.ProviderKey, now); err != nil {
			return fmt.Errorf("identity: link external login: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users SET last_login_at = $2 WHERE id = $1`, u.ID, now); err != nil {
			return fmt.Errorf("identity: stamp last login: %w", err)
		}
		u.LastLoginAt = &now

		user = u
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *PGStore) scanUser(row pgx.Row) (*User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	return u, err
}

func scanUserRow(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt); err != nil {
		return nil, err
	}
	return &u, nil
}

var _ Store = (*PGStore)(nil)
