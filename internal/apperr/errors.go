// Package apperr defines the sentinel errors shared across Plume.
package apperr

import "errors"

var (
	// ErrNotFound signals that a referenced post or category does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized signals a mutation attempted by a caller without the
	// required identity; no side effect has been performed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDuplicateCategory signals that a category with the same normalized
	// name or derived id already exists.
	ErrDuplicateCategory = errors.New("duplicate category")
	// ErrValidation signals missing or malformed input caught before any I/O.
	ErrValidation = errors.New("validation failed")
	// ErrNotReady signals that the initial snapshot or local load has not
	// completed yet.
	ErrNotReady = errors.New("not ready")
	// ErrClosed signals an operation against a closed store or stream.
	ErrClosed = errors.New("closed")
)
