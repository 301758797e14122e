package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dynart/userhub/internal/identity"
	"github.com/dynart/userhub/internal/platform/httpx"
	"github.com/dynart/userhub/internal/shared"
)

// Service handles user management business rules.
type Service struct {
	store Store
}

// NewService builds a Service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	user, err := s.store.Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	return user, err
}

// Create adds a user with the given role, defaulting to the User role.
func (s *Service) Create(ctx context.Context, email, name string, role *string) (*User, error) {
	roleName := identity.DefaultRole
	if r := normalizeRole(role); r != nil {
		roleName = *r
	}

	taken, err := s.store.EmailInUse(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: user with this email already exists", httpx.ErrValidation)
	}

	user, err := s.store.Create(ctx, email, name, roleName)
	return user, mapStoreError(err)
}

// Update rewrites a user's email and name. A role, when given, replaces the
// existing assignment wholesale; when omitted the assignment is untouched.
func (s *Service) Update(ctx context.Context, id int64, email, name string, role *string) (*User, error) {
	taken, err := s.store.EmailInUse(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email is already taken", httpx.ErrValidation)
	}

	user, err := s.store.Update(ctx, id, email, name, normalizeRole(role))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	return user, mapStoreError(err)
}

// Delete removes a user and, through cascade, its external logins and role
// assignments.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	return err
}

// normalizeRole treats a missing or blank role name as absent.
func normalizeRole(role *string) *string {
	if role == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*role)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnknownRole) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	// Unique-index backstop for concurrent writers racing the EmailInUse check.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: user with this email already exists", httpx.ErrValidation)
	}
	return err
}
