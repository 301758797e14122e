package rbac

import (
	"context"
	"strings"
)

// Service orchestrates permission resolution.
type Service struct {
	store Store
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// EffectivePermissions returns the deduplicated permission names for the user
// with the given email. A user with zero roles, or with roles granting zero
// permissions, resolves to an empty set identically.
func (s *Service) EffectivePermissions(ctx context.Context, email string) ([]string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	return s.store.EffectivePermissionsByEmail(ctx, email)
}

// ListPermissions returns every permission known to the platform.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}
