package locks

import (
	"errors"
	"testing"
)

// TestReturnWhenLocked tests the Locked-to-substitute combinator.
func TestReturnWhenLocked(t *testing.T) {
	t.Run("success passes through", func(t *testing.T) {
		fn := ReturnWhenLocked(func() (string, error) {
			return "done", nil
		}, "already locked")
		got, err := fn()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "done" {
			t.Errorf("result = %q, want done", got)
		}
	})

	t.Run("locked yields the substitute", func(t *testing.T) {
		fn := ReturnWhenLocked(func() (string, error) {
			return "", &LockedError{Key: "key"}
		}, "already locked")
		got, err := fn()
		if err != nil {
			t.Fatalf("the Locked error should be swallowed, got %v", err)
		}
		if got != "already locked" {
			t.Errorf("result = %q, want the substitute", got)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		timeout := &LockTimeoutError{Key: "key"}
		fn := ReturnWhenLocked(func() (string, error) {
			return "", timeout
		}, "already locked")
		if _, err := fn(); !errors.Is(err, ErrLockTimeout) {
			t.Errorf("a timeout must propagate unchanged, got %v", err)
		}
	})
}
