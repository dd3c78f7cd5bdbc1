package lifecycle

import "errors"

var (
	// ErrNotFound means the job id does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition means the requested state change is not
	// permitted from the job's current state.
	ErrInvalidTransition = errors.New("invalid job transition")

	// ErrValidation means the input was malformed (out-of-range progress,
	// bad ids, missing steps).
	ErrValidation = errors.New("validation error")

	// ErrNotCompleted means a result was requested for a job that has not
	// completed.
	ErrNotCompleted = errors.New("job is not completed")
)

// Error kinds stored in job metadata alongside the free-text error message,
// so callers can branch without parsing strings.
const (
	ErrorKindValidation = "validation"
	ErrorKindExecution  = "execution"
	ErrorKindStorage    = "storage"
	ErrorKindTimeout    = "timeout"
	ErrorKindCancelled  = "cancelled"
)
