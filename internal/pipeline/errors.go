package pipeline

import (
	"errors"
	"fmt"

	"github.com/uiowa-coph/roomres/internal/validate"
)

// ErrNotFound reports a query miss on the record or layout store.
var ErrNotFound = errors.New("not found")

// ValidationError carries every field failure from a pre-flight check. No
// external side effect has happened when Stage is StageValidating; a layout
// validation failure happens later, after the record already exists.
type ValidationError struct {
	Stage  string
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s: %d field error(s)", e.Stage, len(e.Fields))
}

// UpstreamError is any external-system failure, tagged with the system and
// the pipeline stage that hit it.
type UpstreamError struct {
	System  string
	Stage   string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed at %s: %s", e.System, e.Stage, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// OrphanedPackageError means the approval router created a package but the
// record store refused the record. The package needs manual reconciliation,
// so the identifier must reach the caller.
type OrphanedPackageError struct {
	UpstreamError
	PackageID int
}

func (e *OrphanedPackageError) Error() string {
	return fmt.Sprintf("%s (orphaned package %d)", e.UpstreamError.Error(), e.PackageID)
}

func upstream(system, stage string, err error) *UpstreamError {
	return &UpstreamError{System: system, Stage: stage, Message: err.Error(), Err: err}
}
