package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrIncompleteIdentity indicates the provider assertion was missing a
// required fact; no session may be established from it.
var ErrIncompleteIdentity = errors.New("identity: incomplete external identity")

// Service wraps session-bootstrap business rules.
type Service struct {
	logger *slog.Logger
	store  Store
}

// NewService constructs a new Service.
func NewService(logger *slog.Logger, store Store) *Service {
	return &Service{logger: logger, store: store}
}

// SignIn establishes or refreshes the local account for an externally asserted
// identity. All four asserted facts must be non-empty.
func (s *Service) SignIn(ctx context.Context, ext ExternalIdentity) (*User, error) {
	ext.Email = strings.TrimSpace(ext.Email)
	ext.DisplayName = strings.TrimSpace(ext.DisplayName)
	ext.Provider = strings.TrimSpace(ext.Provider)
	ext.ProviderKey = strings.TrimSpace(ext.ProviderKey)
	if ext.Email == "" || ext.DisplayName == "" || ext.Provider == "" || ext.ProviderKey == "" {
		return nil, ErrIncompleteIdentity
	}

	user, created, err := s.store.SignIn(ctx, ext)
	if err != nil {
		return nil, fmt.Errorf("identity: sign in %s: %w", ext.Email, err)
	}
	if created {
		s.logger.Info("new user registered",
			slog.String("email", user.Email),
			slog.String("provider", ext.Provider))
	}
	return user, nil
}

// UserByID fetches a user by primary key.
func (s *Service) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.store.FindByID(ctx, id)
}
