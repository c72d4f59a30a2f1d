// Package apperr holds sentinel errors shared across the service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrNotRenderable is returned when a node has no complete HTML to render or export.
	ErrNotRenderable = errors.New("not renderable")
	// ErrCanceled marks a generation stream that was superseded or canceled.
	ErrCanceled = errors.New("canceled")
)
