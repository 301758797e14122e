// Package identity establishes local user accounts from externally asserted
// sign-ins and owns the browser session lifecycle.
package identity

import "time"

// User represents a local user account.
type User struct {
	ID          int64
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// ExternalIdentity is the set of facts asserted by the identity provider on a
// successful sign-in.
type ExternalIdentity struct {
	Email       string
	DisplayName string
	Provider    string
	ProviderKey string
}
