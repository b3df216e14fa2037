// Package locks implements exclusive distributed locks backed by ZooKeeper,
// addressed by logical key templates.
//
// Core Functionality:
//   - Process-wide key registration with duplicate detection at
//     construction time (Registry, DuplicateKeyError)
//   - Parameterized key templates ("resource-{id}") with explicit
//     substitution errors (KeyTemplate, MissingParameterError)
//   - Scoped critical sections over a remote lock at
//     /locks/{namespace}/{key} with blocking, timed and non-blocking
//     acquisition (Lock.Do, LockedError, LockTimeoutError)
//   - Reentrancy per concrete key, per call chain, per process
//   - A combinator that converts LockedError into a substitute result
//     (ReturnWhenLocked)
//
// Reentrancy:
//
//	The held-keys set rides on the context. When a body guarded by Do
//	invokes the same Lock with the same concrete key using the context it
//	was handed, the inner call runs the body directly: no connection
//	scope, no remote lock, no state mutation on exit. Reentrancy does not
//	extend across distinct Lock instances with semantically equal keys,
//	across independent contexts, or across processes - entries are keyed
//	by process id precisely so that a forked child never mistakes the
//	parent's held keys for its own.
//
// Failure Contract:
//
//	Remote failures are translated at this boundary into LockedError and
//	LockTimeoutError, both carrying the concrete key for diagnosability.
//	The one deliberate exception is zkclient.ErrSessionClosed, which
//	passes through untranslated after triggering session repair in the
//	connection manager: the caller must learn that the guarded operation
//	may not have completed under lock protection.
//
// Usage Example:
//
//	lock, err := locks.New(manager, "my-lock-{object_id}", "app")
//	if err != nil {
//	    // duplicate key or malformed template
//	}
//	defer lock.Close()
//
//	err = lock.Do(ctx, func(ctx context.Context) error {
//	    // runs while holding /locks/app/my-lock-123
//	    return nil
//	}, locks.WithParam("object_id", 123), locks.WithTimeout(9*time.Second))
//	if errors.Is(err, locks.ErrLockTimeout) {
//	    // unable to lock after waiting for 9s
//	}
package locks
