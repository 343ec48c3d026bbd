package relayer

import (
	"errors"
	"fmt"
)

// Class is the retry class of a job failure
type Class int

const (
	// ClassTransient failures are retried on the backoff schedule
	ClassTransient Class = iota
	// ClassPermanent failures fail the job without retries
	ClassPermanent
)

func (c Class) String() string {
	if c == ClassPermanent {
		return "permanent"
	}
	return "transient"
}

// JobError is a classified failure. Kind is a short machine-readable label used in metrics.
type JobError struct {
	Class Class
	Kind  string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Class, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Permanent marks err as a failure that retrying cannot fix
func Permanent(kind string, err error) error {
	return &JobError{Class: ClassPermanent, Kind: kind, Err: err}
}

// Transient marks err as a failure worth retrying
func Transient(kind string, err error) error {
	return &JobError{Class: ClassTransient, Kind: kind, Err: err}
}

// Classify returns the class and kind of err. Unclassified errors are transient.
func Classify(err error) (Class, string) {
	var je *JobError
	if errors.As(err, &je) {
		return je.Class, je.Kind
	}
	return ClassTransient, "unknown_error"
}

var (
	// ErrNotFailed is returned by rescue operations on jobs that are not failed
	ErrNotFailed = errors.New("job is not failed")

	errInvalidRecipient = errors.New("invalid recipient")
	errInvalidAmount    = errors.New("invalid amount")
)
