package domain

import "github.com/cockroachdb/errors"

var (
	// ErrSerializationFailure marks a transaction the store aborted under
	// contention (SQLSTATE 40001). The whole attempt may be retried.
	ErrSerializationFailure = errors.New("serialization failure")

	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrBookingExpired   = errors.New("booking expired")
	ErrAlreadyConfirmed = errors.New("booking already confirmed")
)
