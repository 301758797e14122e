// Package rbac resolves role-based permissions for authenticated principals
// and gates HTTP endpoints on them.
package rbac

// Permission represents an atomic capability.
type Permission struct {
	ID   int64
	Name string
}
