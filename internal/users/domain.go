package users

import "time"

// User represents a user account for management, with its assigned role.
type User struct {
	ID          int64
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
