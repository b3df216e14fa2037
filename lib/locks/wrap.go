package locks

import (
	"errors"
)

// ReturnWhenLocked wraps a fallible operation so that a LockedError outcome
// yields the given substitute value instead of the error, for call sites
// that want "best effort, skip if busy" semantics. Every other error -
// including LockTimeoutError - and every successful result pass through
// unchanged.
//
//	report := locks.ReturnWhenLocked(generateReport, "already running")
//	msg, err := report()
func ReturnWhenLocked[T any](fn func() (T, error), substitute T) func() (T, error) {
	return func() (T, error) {
		v, err := fn()
		if errors.Is(err, ErrLocked) {
			return substitute, nil
		}
		return v, err
	}
}
