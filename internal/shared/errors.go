package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates no principal identity on the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal lacks a required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrKeyInvalid indicates a monthly key that does not match the derived value.
	ErrKeyInvalid = errors.New("monthly key invalid")
	// ErrKeyLocked indicates verification refused while a lockout is active.
	ErrKeyLocked = errors.New("monthly key locked")
	// ErrVersionConflict indicates a conditional update lost to a concurrent writer.
	ErrVersionConflict = errors.New("version conflict")
)
