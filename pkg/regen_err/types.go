// pkg/regen_err/types.go

package regen_err

import "errors"

var (
	// ErrRunInProgress is returned when a target already has an active run.
	ErrRunInProgress = errors.New("update already in progress")

	// ErrToolTimeout is returned when the external tool outlives its budget.
	ErrToolTimeout = errors.New("external tool timed out")

	ErrNoExecutable = errors.New("no update executable found")
)

// UserError marks an error as expected and recoverable by the user.
type UserError struct {
	cause error
}

func (e *UserError) Error() string {
	return e.cause.Error()
}

func (e *UserError) Unwrap() error {
	return e.cause
}
