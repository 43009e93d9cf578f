// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidProgress is returned when reading progress falls outside [0,1].
	ErrInvalidProgress = errors.New("progress must be between 0 and 1")

	// ErrInvalidAnnotationType is returned when an annotation type is not
	// one of highlight, note, or bookmark.
	ErrInvalidAnnotationType = errors.New("invalid annotation type")

	// ErrInvalidTaskStatus is returned when a task status string is unknown.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidBookFormat is returned when a book format is unsupported.
	ErrInvalidBookFormat = errors.New("invalid book format")

	// ErrEmptyLocator is returned when a reading state has no locator.
	ErrEmptyLocator = errors.New("locator cannot be empty")
)
