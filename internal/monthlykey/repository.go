package monthlykey

import "context"

// PrincipalRef identifies a known principal for the operator overview.
type PrincipalRef struct {
	ID       int64
	Username string
}

// Repository defines persistence operations for attempt records. Get returns
// shared.ErrNotFound when the principal has never attempted verification.
// Update is conditional on AttemptRecord.Version and returns
// shared.ErrVersionConflict when a concurrent writer got there first.
type Repository interface {
	Get(ctx context.Context, userID int64) (*AttemptRecord, error)
	Create(ctx context.Context, rec *AttemptRecord) error
	Update(ctx context.Context, rec *AttemptRecord) error
	ListPrincipals(ctx context.Context) ([]PrincipalRef, error)
	ListRecords(ctx context.Context) ([]AttemptRecord, error)
	DeleteOlderThan(ctx context.Context, year, month int) (int64, error)
}
