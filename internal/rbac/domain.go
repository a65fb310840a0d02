package rbac

import "time"

// Principal describes the authenticated caller of a dispatch.
type Principal struct {
	ID            int64
	Username      string
	IsSuperuser   bool
	Authenticated bool
}

// Role represents a named grouping of operation grants.
type Role struct {
	ID        int64
	Name      string
	Grants    []Grant
	CreatedAt time.Time
}

// Grant allows members of a role to invoke one operation. There is at most
// one grant per (role, operation) pair.
type Grant struct {
	ID            int64
	RoleID        int64
	OperationName string
	Active        bool
}

// UserRole links a user to a role.
type UserRole struct {
	UserID     int64
	RoleID     int64
	AssignedAt time.Time
}
