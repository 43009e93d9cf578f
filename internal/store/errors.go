package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrDeviceNotFound indicates that the requested device does not exist.
	ErrDeviceNotFound = fmt.Errorf("%w: device", ErrNotFound)

	// ErrBookNotFound indicates that the requested book does not exist.
	ErrBookNotFound = fmt.Errorf("%w: book", ErrNotFound)

	// ErrReadingStateNotFound indicates that no reading state exists for the
	// requested (user, book) pair.
	ErrReadingStateNotFound = fmt.Errorf("%w: reading state", ErrNotFound)

	// ErrAnnotationNotFound indicates that the requested annotation does not exist.
	ErrAnnotationNotFound = fmt.Errorf("%w: annotation", ErrNotFound)

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
