package repository

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyExists indicates a uniqueness violation, e.g. two concurrent
	// edits racing to create the same draft.
	ErrAlreadyExists = errors.New("repository: already exists")
	// ErrRevisionMismatch indicates the caller's expected revision is stale.
	ErrRevisionMismatch = errors.New("repository: revision mismatch")
)
