package rbac

import "context"

// Repository provides read access to role assignments. The permission field
// of each role row is passed through untouched; normalization happens in the
// service so both the canonical and legacy storage shapes stay legal.
type Repository interface {
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
}
