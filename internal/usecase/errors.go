package usecase

import (
	"errors"
	"fmt"

	"github.com/arklim/record-registry/internal/core/domain"
)

var (
	// ErrPermissionDenied indicates the policy collaborator rejected the
	// operation. Propagated to the caller, never retried.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrFileStateInvalid indicates the files manifest is not in a state the
	// requested transition allows: files enabled but incomplete or missing,
	// disable attempted while files exist, or a transfer still pending.
	ErrFileStateInvalid = errors.New("file state invalid")
	// ErrStorageLocked indicates a bucket is locked; published files must be
	// changed through a new version, not a direct edit.
	ErrStorageLocked = errors.New("storage bucket locked")
	// ErrNoPublishedVersion indicates no version of the item was ever
	// published.
	ErrNoPublishedVersion = errors.New("no published version")
)

// ValidationError aborts an operation that must never persist invalid data
// (publish). Draft saves report the same issues without raising.
type ValidationError struct {
	Report domain.ValidationReport
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Report.String())
}

// AsValidationError unwraps err into a ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
