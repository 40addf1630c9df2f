package bulkops

import (
	"errors"
	"fmt"
)

// Validation error codes.
const (
	CodeNoTargets            = "no_targets"
	CodeBadTargets           = "bad_targets"
	CodeBadOperation         = "bad_operation"
	CodeConfirmationRequired = "confirmation_required"
	CodeIneligibleTargets    = "ineligible_targets"
)

// Item error codes.
const (
	ErrCodeUnknown    = "UNKNOWN_ERROR"
	ErrCodeProcessing = "PROCESSING_ERROR"
)

// ErrQueueFull is returned when the admission queue is at capacity. The caller
// should retry later; no operation id is issued.
var ErrQueueFull = errors.New("maximum number of concurrent bulk operations reached")

// ValidationError rejects a request before any item is touched.
type ValidationError struct {
	Code       string
	Message    string
	InvalidIDs []int64
}

func (e *ValidationError) Error() string {
	if len(e.InvalidIDs) > 0 {
		return fmt.Sprintf("%s (%d invalid target(s): %v)", e.Message, len(e.InvalidIDs), e.InvalidIDs)
	}
	return e.Message
}
