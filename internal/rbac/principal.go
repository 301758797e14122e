package rbac

import "context"

// CredentialSource identifies which of the two accepted credential schemes
// authenticated a request.
type CredentialSource string

// The closed set of verified-credential variants. Both normalize to the same
// Principal shape before any policy evaluation.
const (
	SourceCookie CredentialSource = "cookie"
	SourceBearer CredentialSource = "bearer"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID      int64
	Email       string
	DisplayName string
	Source      CredentialSource
	Permissions []string
}

// HasPermission reports whether the principal carries the named permission.
func (p *Principal) HasPermission(name string) bool {
	if p == nil {
		return false
	}
	for _, perm := range p.Permissions {
		if perm == name {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
