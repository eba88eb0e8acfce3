package migration

import (
	"errors"
	"fmt"
)

// ErrCurveNotCompleted is returned when the curve has not reached its limit.
var ErrCurveNotCompleted = errors.New("bonding curve is not completed")

// PhaseError wraps the failure of the phase that was leaving State.
// errors.As reaches the underlying ledger or program error.
type PhaseError struct {
	State State
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("migration failed in state %s: %v", e.State, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
