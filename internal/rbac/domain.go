// Package rbac resolves a principal's effective permissions from role
// assignments and guards HTTP routes with them.
package rbac

import "time"

// Role represents a named, reusable bundle of permission tokens. Permissions
// holds the raw stored field: a canonical array or one of the legacy shapes
// accepted by perm.Normalize. Role management itself lives in the main
// application; this core only consumes the resolved rows.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// SyncReport answers a client's drift probe: whether its cached permission
// view is stale, together with the authoritative wire-form set.
type SyncReport struct {
	Resync      bool     `json:"resync"`
	Permissions []string `json:"permissions"`
}
