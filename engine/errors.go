package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreFailure tags failures raised by the underlying store.
	ErrStoreFailure = errors.New("store failure")
	// ErrPartialCommit tags failures that happened after the transaction was recorded.
	ErrPartialCommit = errors.New("partial commit")

	ErrInvalidUser    = errors.New("invalid user id")
	ErrEmptyEventType = errors.New("event type cannot be empty")
	ErrZeroAdjustment = errors.New("adjustment points cannot be zero")
	ErrEmptyReason    = errors.New("adjustment reason cannot be empty")
)

// PipelineError reports the award step that failed. Partial is set when earlier
// steps already committed and were left in place.
type PipelineError struct {
	Step    Step
	Partial bool
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Partial {
		return fmt.Sprintf("%s failed after partial commit: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func (e *PipelineError) Is(target error) bool {
	switch target {
	case ErrStoreFailure:
		return true
	case ErrPartialCommit:
		return e.Partial
	}
	return false
}
