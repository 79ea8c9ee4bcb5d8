package execution

import "errors"

var (
	// ErrRunInProgress is returned when a schedule is loaded into a run that
	// has already started.
	ErrRunInProgress = errors.New("execution: run in progress")
	// ErrClosed is returned by a runner after Close.
	ErrClosed = errors.New("execution: runner closed")
)
