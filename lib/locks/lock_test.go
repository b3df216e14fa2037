package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wedeploy/zklocks/lib/connection"
	"github.com/wedeploy/zklocks/lib/zkclient"
)

const testNamespace = "test-app"

// acquireCall records the arguments of one remote Acquire call.
type acquireCall struct {
	blocking bool
	timeout  time.Duration
}

// fakeRemoteLock is a dummy remote lock recording its usage.
type fakeRemoteLock struct {
	path     string
	result   bool
	err      error
	acquires []acquireCall
	releases int
}

func (l *fakeRemoteLock) Acquire(blocking bool, timeout time.Duration) (bool, error) {
	l.acquires = append(l.acquires, acquireCall{blocking: blocking, timeout: timeout})
	if l.err != nil {
		return false, l.err
	}
	return l.result, nil
}

func (l *fakeRemoteLock) Release() error {
	l.releases++
	return nil
}

// fakeClient is a dummy coordination-service client handing out recording
// locks.
type fakeClient struct {
	started       bool
	everStarted   bool
	reconnects    int
	locks         []*fakeRemoteLock
	acquireResult bool
	acquireErr    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{acquireResult: true}
}

func (c *fakeClient) Connect() error {
	c.started = true
	c.everStarted = true
	return nil
}

func (c *fakeClient) Close() {
	c.started = false
}

func (c *fakeClient) Reconnect() error {
	c.reconnects++
	c.Close()
	return c.Connect()
}

func (c *fakeClient) NewLock(path string) zkclient.ILock {
	l := &fakeRemoteLock{path: path, result: c.acquireResult, err: c.acquireErr}
	c.locks = append(c.locks, l)
	return l
}

// newTestLock builds a Lock over the fake client with a test-private
// registry, so tests cannot collide through the process-wide default.
func newTestLock(t *testing.T, fake *fakeClient, template string) *Lock {
	t.Helper()
	manager := connection.NewManager(func() (zkclient.IClient, error) {
		return fake, nil
	})
	lock, err := New(manager, template, testNamespace, WithRegistry(NewRegistry()))
	if err != nil {
		t.Fatalf("failed to create lock %q: %v", template, err)
	}
	t.Cleanup(lock.Close)
	return lock
}

// TestLocking tests successful lock scenarios.
func TestLocking(t *testing.T) {
	tests := map[string]struct {
		template string
		opts     []CallOption
		wantPath string
		wantCall acquireCall
	}{
		"without_params": {
			template: "sample-key",
			wantPath: "/locks/test-app/sample-key",
			wantCall: acquireCall{blocking: true},
		},
		"with_params": {
			template: "sample-key-{param}",
			opts:     []CallOption{WithParam("param", 21)},
			wantPath: "/locks/test-app/sample-key-21",
			wantCall: acquireCall{blocking: true},
		},
		"blocking_timeout": {
			template: "sample-key",
			opts:     []CallOption{WithTimeout(10 * time.Second)},
			wantPath: "/locks/test-app/sample-key",
			wantCall: acquireCall{blocking: true, timeout: 10 * time.Second},
		},
		"not_blocking": {
			template: "sample-key",
			opts:     []CallOption{NonBlocking()},
			wantPath: "/locks/test-app/sample-key",
			wantCall: acquireCall{blocking: false},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			fake := newFakeClient()
			lock := newTestLock(t, fake, tc.template)

			ran := false
			err := lock.Do(context.Background(), func(context.Context) error {
				ran = true
				if !fake.started {
					t.Error("client should be connected while the body runs")
				}
				if len(fake.locks) != 1 {
					t.Fatalf("expected 1 remote lock, got %d", len(fake.locks))
				}
				remote := fake.locks[0]
				if remote.path != tc.wantPath {
					t.Errorf("remote lock path = %q, want %q", remote.path, tc.wantPath)
				}
				if len(remote.acquires) != 1 || remote.acquires[0] != tc.wantCall {
					t.Errorf("acquire calls = %+v, want exactly one %+v", remote.acquires, tc.wantCall)
				}
				if remote.releases != 0 {
					t.Error("release must not be called while the body runs")
				}
				return nil
			}, tc.opts...)
			if err != nil {
				t.Fatalf("Do returned an unexpected error: %v", err)
			}
			if !ran {
				t.Fatal("the guarded body did not run")
			}
			if got := fake.locks[0].releases; got != 1 {
				t.Errorf("release should be called exactly once on exit, got %d", got)
			}
			if fake.started {
				t.Error("connection should be closed after the scope exits")
			}
		})
	}
}

// TestLockingFailed tests unsuccessful lock scenarios.
func TestLockingFailed(t *testing.T) {
	tests := map[string]struct {
		opts        []CallOption
		acquireErr  error
		wantErr     error
		wantMessage string
		wantCall    acquireCall
	}{
		"blocking_timeout": {
			opts:        []CallOption{WithTimeout(10 * time.Second)},
			acquireErr:  fmt.Errorf("%w after 10s", zkclient.ErrAcquireTimeout),
			wantErr:     ErrLockTimeout,
			wantMessage: "timeout occurred while trying to acquire a blocking lock on key",
			wantCall:    acquireCall{blocking: true, timeout: 10 * time.Second},
		},
		"not_blocking": {
			opts:        []CallOption{NonBlocking()},
			wantErr:     ErrLocked,
			wantMessage: "failed to acquire a non-blocking lock on key",
			wantCall:    acquireCall{blocking: false},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			fake := newFakeClient()
			fake.acquireResult = false
			fake.acquireErr = tc.acquireErr
			lock := newTestLock(t, fake, "key")

			err := lock.Do(context.Background(), func(context.Context) error {
				t.Fatal("the guarded body should not run")
				return nil
			}, tc.opts...)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Do returned %v, want %v", err, tc.wantErr)
			}
			if err.Error() != tc.wantMessage {
				t.Errorf("error message = %q, want %q", err.Error(), tc.wantMessage)
			}

			remote := fake.locks[0]
			if remote.path != "/locks/test-app/key" {
				t.Errorf("remote lock path = %q, want /locks/test-app/key", remote.path)
			}
			if len(remote.acquires) != 1 || remote.acquires[0] != tc.wantCall {
				t.Errorf("acquire calls = %+v, want exactly one %+v", remote.acquires, tc.wantCall)
			}
			if remote.releases != 0 {
				t.Error("release must never be called for a failed acquisition")
			}
			if !fake.everStarted {
				t.Error("the client should have been connected for the attempt")
			}
			if fake.started {
				t.Error("a failed acquisition must still exit the connection scope")
			}
		})
	}
}

// TestAcquireScenario walks the canonical end-to-end scenario: namespace
// "app", template "res-{id}", invoked with id=21 and a 10s blocking
// timeout.
func TestAcquireScenario(t *testing.T) {
	fake := newFakeClient()
	manager := connection.NewManager(func() (zkclient.IClient, error) { return fake, nil })
	lock, err := New(manager, "res-{id}", "app", WithRegistry(NewRegistry()))
	if err != nil {
		t.Fatalf("failed to create lock: %v", err)
	}
	defer lock.Close()

	err = lock.Do(context.Background(), func(context.Context) error { return nil },
		WithParam("id", 21), WithTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("Do returned an unexpected error: %v", err)
	}

	remote := fake.locks[0]
	if remote.path != "/locks/app/res-21" {
		t.Errorf("remote lock path = %q, want /locks/app/res-21", remote.path)
	}
	want := acquireCall{blocking: true, timeout: 10 * time.Second}
	if len(remote.acquires) != 1 || remote.acquires[0] != want {
		t.Errorf("acquire calls = %+v, want exactly one %+v", remote.acquires, want)
	}
	if remote.releases != 1 {
		t.Errorf("release should be called exactly once on normal exit, got %d", remote.releases)
	}
}

// TestFailedErrorCarriesKey tests that the typed errors expose the concrete
// key for diagnosability.
func TestFailedErrorCarriesKey(t *testing.T) {
	fake := newFakeClient()
	fake.acquireResult = false
	lock := newTestLock(t, fake, "res-{id}")

	err := lock.Do(context.Background(), func(context.Context) error { return nil },
		NonBlocking(), WithParam("id", 42))

	var lockedErr *LockedError
	if !errors.As(err, &lockedErr) {
		t.Fatalf("expected a *LockedError, got %T (%v)", err, err)
	}
	if lockedErr.Key != "res-42" {
		t.Errorf("LockedError.Key = %q, want res-42", lockedErr.Key)
	}
}

// TestNestedLocks tests that re-entering the same concrete key inside the
// critical section degrades to a no-op grant.
func TestNestedLocks(t *testing.T) {
	fake := newFakeClient()
	lock := newTestLock(t, fake, "key")

	innerRan := false
	err := lock.Do(context.Background(), func(ctx context.Context) error {
		return lock.Do(ctx, func(context.Context) error {
			innerRan = true
			return nil
		}, NonBlocking())
	}, NonBlocking())
	if err != nil {
		t.Fatalf("Do returned an unexpected error: %v", err)
	}
	if !innerRan {
		t.Fatal("the nested body did not run")
	}
	if len(fake.locks) != 1 {
		t.Fatalf("the reentrant call must not construct a second remote lock, got %d", len(fake.locks))
	}
	remote := fake.locks[0]
	if len(remote.acquires) != 1 {
		t.Errorf("the reentrant call must not acquire again, got %d acquire calls", len(remote.acquires))
	}
	if remote.releases != 1 {
		t.Errorf("release should run exactly once, on the outer exit, got %d", remote.releases)
	}
}

// TestReentrancyBoundaries tests that reentrancy does not leak across
// distinct Lock instances or across independent contexts.
func TestReentrancyBoundaries(t *testing.T) {
	t.Run("distinct locks with equal concrete keys", func(t *testing.T) {
		fake := newFakeClient()
		manager := connection.NewManager(func() (zkclient.IClient, error) { return fake, nil })
		reg := NewRegistry()
		first, err := New(manager, "shared-{id}", testNamespace, WithRegistry(reg))
		if err != nil {
			t.Fatalf("failed to create first lock: %v", err)
		}
		defer first.Close()
		second, err := New(manager, "shared-{x}", testNamespace, WithRegistry(reg))
		if err != nil {
			t.Fatalf("failed to create second lock: %v", err)
		}
		defer second.Close()

		err = first.Do(context.Background(), func(ctx context.Context) error {
			return second.Do(ctx, func(context.Context) error { return nil },
				WithParam("x", 1))
		}, WithParam("id", 1))
		if err != nil {
			t.Fatalf("Do returned an unexpected error: %v", err)
		}
		if len(fake.locks) != 2 {
			t.Errorf("the second Lock must hit the remote system, got %d remote locks", len(fake.locks))
		}
	})

	t.Run("independent contexts", func(t *testing.T) {
		fake := newFakeClient()
		lock := newTestLock(t, fake, "key")

		err := lock.Do(context.Background(), func(context.Context) error {
			// A fresh context has no held-keys scope: this is a real
			// (non-reentrant) second acquisition, not a no-op.
			return lock.Do(context.Background(), func(context.Context) error { return nil })
		})
		if err != nil {
			t.Fatalf("Do returned an unexpected error: %v", err)
		}
		if len(fake.locks) != 2 {
			t.Errorf("an unrelated context must acquire remotely, got %d remote locks", len(fake.locks))
		}
	})
}

// TestBodyErrorStillReleases tests that a failing body releases the remote
// lock and balances the connection scope on the way out.
func TestBodyErrorStillReleases(t *testing.T) {
	fake := newFakeClient()
	lock := newTestLock(t, fake, "key")

	wantErr := errors.New("body failed")
	err := lock.Do(context.Background(), func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do should propagate the body error, got %v", err)
	}
	if got := fake.locks[0].releases; got != 1 {
		t.Errorf("release should run exactly once despite the body error, got %d", got)
	}
	if fake.started {
		t.Error("connection scope leaked: client still connected")
	}
}

// TestSessionClosedPassesThrough tests that a severed session surfaces
// untranslated and drives the reconnect-on-exit behavior of the manager.
func TestSessionClosedPassesThrough(t *testing.T) {
	t.Run("standalone call tears down without reconnect", func(t *testing.T) {
		fake := newFakeClient()
		fake.acquireErr = fmt.Errorf("create failed: %w", zkclient.ErrSessionClosed)
		lock := newTestLock(t, fake, "key")

		err := lock.Do(context.Background(), func(context.Context) error { return nil })
		if !errors.Is(err, zkclient.ErrSessionClosed) {
			t.Fatalf("expected the session error to pass through, got %v", err)
		}
		if fake.reconnects != 0 {
			t.Errorf("the outermost exit tears the handle down, expected 0 reconnects, got %d", fake.reconnects)
		}
	})

	t.Run("call nested in an outer scope reconnects once", func(t *testing.T) {
		fake := newFakeClient()
		fake.acquireErr = fmt.Errorf("create failed: %w", zkclient.ErrSessionClosed)
		manager := connection.NewManager(func() (zkclient.IClient, error) { return fake, nil })
		lock, err := New(manager, "key", testNamespace, WithRegistry(NewRegistry()))
		if err != nil {
			t.Fatalf("failed to create lock: %v", err)
		}
		defer lock.Close()

		ctx := manager.EnterScope(context.Background())
		err = lock.Do(ctx, func(context.Context) error { return nil })
		if !errors.Is(err, zkclient.ErrSessionClosed) {
			t.Fatalf("expected the session error to pass through, got %v", err)
		}
		if fake.reconnects != 1 {
			t.Errorf("the inner exit leaves the handle alive, expected exactly 1 reconnect, got %d", fake.reconnects)
		}
		manager.ExitScope(ctx, err)
		if fake.reconnects != 1 {
			t.Errorf("the outer exit must not reconnect again, got %d", fake.reconnects)
		}
	})
}

// TestMissingParameter tests that an unfilled placeholder fails before any
// remote interaction.
func TestMissingParameter(t *testing.T) {
	fake := newFakeClient()
	lock := newTestLock(t, fake, "res-{id}")

	err := lock.Do(context.Background(), func(context.Context) error {
		t.Fatal("the guarded body should not run")
		return nil
	})
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
	if fake.everStarted {
		t.Error("a formatting failure must not touch the remote system")
	}
}

// TestConcurrentClose tests that Close races safely with an in-flight
// invocation: the call either runs normally or fails with ErrClosed.
func TestConcurrentClose(t *testing.T) {
	fake := newFakeClient()
	manager := connection.NewManager(func() (zkclient.IClient, error) { return fake, nil })
	lock, err := New(manager, "key", testNamespace, WithRegistry(NewRegistry()))
	if err != nil {
		t.Fatalf("failed to create lock: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := lock.Do(context.Background(), func(context.Context) error { return nil })
		if err != nil && !errors.Is(err, ErrClosed) {
			t.Errorf("Do returned an unexpected error: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		lock.Close()
	}()
	wg.Wait()
	lock.Close()
}

// TestClosedLock tests that invoking a closed Lock fails.
func TestClosedLock(t *testing.T) {
	fake := newFakeClient()
	manager := connection.NewManager(func() (zkclient.IClient, error) { return fake, nil })
	lock, err := New(manager, "key", testNamespace, WithRegistry(NewRegistry()))
	if err != nil {
		t.Fatalf("failed to create lock: %v", err)
	}
	lock.Close()

	if err := lock.Do(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from a closed lock, got %v", err)
	}
}
