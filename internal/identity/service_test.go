package identity_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynart/userhub/internal/identity"
	"github.com/dynart/userhub/internal/shared"
	_ "github.com/dynart/userhub/testing"
)

// fakeStore mirrors the store's find-or-create and additive-link semantics in
// memory.
type fakeStore struct {
	nextID int64
	users  map[string]*identity.User
	logins map[string]int64
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*identity.User{}, logins: map[string]int64{}}
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*identity.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	if u, ok := f.users[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeStore) SignIn(ctx context.Context, ext identity.ExternalIdentity) (*identity.User, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	now := time.Now().UTC()
	u, ok := f.users[ext.Email]
	created := false
	if !ok {
		f.nextID++
		u = &identity.User{ID: f.nextID, Email: ext.Email, DisplayName: ext.DisplayName, CreatedAt: now, UpdatedAt: now}
		f.users[ext.Email] = u
		created = true
	} else {
		u.DisplayName = ext.DisplayName
		u.UpdatedAt = now
	}
	key := ext.Provider + "|" + ext.ProviderKey
	if _, linked := f.logins[key]; !linked {
		f.logins[key] = u.ID
	}
	u.LastLoginAt = &now
	copied := *u
	return &copied, created, nil
}

func newService(store identity.Store) *identity.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return identity.NewService(logger, store)
}

func googleIdentity() identity.ExternalIdentity {
	return identity.ExternalIdentity{
		Email:       "jane@example.com",
		DisplayName: "Jane Doe",
		Provider:    "Google",
		ProviderKey: "google-sub-123",
	}
}

func TestSignInRejectsIncompleteIdentity(t *testing.T) {
	svc := newService(newFakeStore())
	for _, mutate := range []func(*identity.ExternalIdentity){
		func(e *identity.ExternalIdentity) { e.Email = "" },
		func(e *identity.ExternalIdentity) { e.DisplayName = "  " },
		func(e *identity.ExternalIdentity) { e.Provider = "" },
		func(e *identity.ExternalIdentity) { e.ProviderKey = "" },
	} {
		ext := googleIdentity()
		mutate(&ext)
		_, err := svc.SignIn(context.Background(), ext)
		assert.ErrorIs(t, err, identity.ErrIncompleteIdentity)
	}
}

func TestSignInCreatesUserOnce(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	var last *identity.User
	for range 3 {
		u, err := svc.SignIn(context.Background(), googleIdentity())
		require.NoError(t, err)
		last = u
	}

	assert.Len(t, store.users, 1)
	assert.Len(t, store.logins, 1)
	assert.Equal(t, int64(1), last.ID)
	assert.NotNil(t, last.LastLoginAt)
}

func TestSignInRefreshesDisplayName(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	_, err := svc.SignIn(context.Background(), googleIdentity())
	require.NoError(t, err)

	renamed := googleIdentity()
	renamed.DisplayName = "Jane D."
	u, err := svc.SignIn(context.Background(), renamed)
	require.NoError(t, err)

	assert.Equal(t, "Jane D.", u.DisplayName)
	assert.Len(t, store.users, 1)
}

func TestSignInLinksSecondProviderToSameUser(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	_, err := svc.SignIn(context.Background(), googleIdentity())
	require.NoError(t, err)

	other := googleIdentity()
	other.Provider = "Apple"
	other.ProviderKey = "apple-sub-456"
	u, err := svc.SignIn(context.Background(), other)
	require.NoError(t, err)

	// Email is the join key: one user, two provider links.
	assert.Equal(t, int64(1), u.ID)
	assert.Len(t, store.users, 1)
	assert.Len(t, store.logins, 2)
}
