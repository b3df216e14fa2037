package locks

import (
	"errors"
	"fmt"
)

// Sentinel errors. The carrier types below wrap them, so callers can use
// errors.Is against the sentinel or errors.As to recover the concrete key.
var (
	// ErrDuplicateKey is returned when a key template is registered while
	// another live Lock already holds it.
	ErrDuplicateKey = errors.New("duplicate lock key")

	// ErrLocked is returned when a non-blocking acquisition finds the lock
	// already held.
	ErrLocked = errors.New("lock is held")

	// ErrLockTimeout is returned when a blocking acquisition exceeds its
	// timeout.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrMissingParameter is returned when a key template placeholder is
	// left unfilled at invocation time.
	ErrMissingParameter = errors.New("missing key parameter")

	// ErrClosed is returned when a closed Lock is invoked.
	ErrClosed = errors.New("lock is closed")
)

// DuplicateKeyError reports a template registered twice.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("attempt to register the same key twice: %s", e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// LockedError reports a failed non-blocking acquisition. Key is the
// concrete key after parameter substitution.
type LockedError struct {
	Key string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("failed to acquire a non-blocking lock on %s", e.Key)
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// LockTimeoutError reports a blocking acquisition that ran out of time.
// Key is the concrete key after parameter substitution.
type LockTimeoutError struct {
	Key string
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timeout occurred while trying to acquire a blocking lock on %s", e.Key)
}

func (e *LockTimeoutError) Unwrap() error { return ErrLockTimeout }

// MissingParameterError reports an unfilled template placeholder.
type MissingParameterError struct {
	Template  string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q for key template %q", e.Parameter, e.Template)
}

func (e *MissingParameterError) Unwrap() error { return ErrMissingParameter }
