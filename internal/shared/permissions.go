package shared

// Core platform permissions.
const (
	PermUsersRead   = "users:read"
	PermUsersWrite  = "users:write"
	PermAdminAccess = "admin:access"
)

// CorePermissions lists every permission known to the platform.
func CorePermissions() []string {
	return []string{
		PermUsersRead,
		PermUsersWrite,
		PermAdminAccess,
	}
}
