package detection

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDuplicateDetection = errors.New("detection already registered")
	ErrDetectionNotFound  = errors.New("detection not found")
	ErrInvalidDetection   = errors.New("invalid detection")
	ErrUnknownEntity      = errors.New("entry has no entity id")
	ErrNilEvent           = errors.New("nil event")
	ErrManagerClosed      = errors.New("detection manager closed")
	ErrLifecycle          = errors.New("illegal lifecycle transition")
)

// FaultError reports a sequence that was reset because a condition, hook, capture or completion
// callback errored or panicked.
type FaultError struct {
	Detection string
	Entity    uuid.UUID
	Step      int
	Err       error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("detection %s: entity %s: step %d: %v", e.Detection, e.Entity, e.Step, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }
