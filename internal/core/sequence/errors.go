package sequence

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTiming  = errors.New("action timing must satisfy expire >= delay >= 0")
	ErrEmptyBlueprint = errors.New("blueprint has no actions")
	ErrActionFrozen   = errors.New("action belongs to a built blueprint")
	ErrActionReused   = errors.New("action already belongs to a blueprint")
	ErrKindMismatch   = errors.New("event kind does not match its concrete type")
)

// PanicError carries a value recovered from a condition, hook or capture.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// guard turns a panic inside fn into a *PanicError.
func guard(fn func() (bool, error)) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, &PanicError{Value: r}
		}
	}()
	return fn()
}
