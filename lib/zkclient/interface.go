package zkclient

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by client and lock operations.
var (
	// ErrSessionClosed indicates that the ZooKeeper session was severed
	// (connection closed or session expired) while an operation was in
	// flight. Callers holding a connection scope should let this error
	// propagate so the scope exit can repair the session.
	ErrSessionClosed = errors.New("zkclient: session closed")

	// ErrAcquireTimeout indicates that a blocking lock acquisition did not
	// complete within the requested timeout.
	ErrAcquireTimeout = errors.New("zkclient: lock acquisition timed out")

	// ErrConnectTimeout indicates that no session could be established
	// within the configured connect timeout.
	ErrConnectTimeout = errors.New("zkclient: connect timed out")

	// ErrNoHosts indicates that the client was created without any
	// ensemble hosts.
	ErrNoHosts = errors.New("zkclient: no hosts configured")
)

// Config holds all parameters needed to reach a ZooKeeper ensemble.
type Config struct {
	// Hosts is the list of ensemble members as host:port strings.
	Hosts []string

	// Namespace is the application namespace. Lock paths are laid out as
	// /locks/{namespace}/{key}.
	Namespace string

	// SessionTimeout is the requested ZooKeeper session timeout.
	// Defaults to DefaultSessionTimeout if zero.
	SessionTimeout time.Duration

	// ConnectTimeout bounds how long Connect waits for a session to be
	// established. Defaults to DefaultConnectTimeout if zero.
	ConnectTimeout time.Duration
}

const (
	DefaultSessionTimeout = 10 * time.Second
	DefaultConnectTimeout = 15 * time.Second
)

// Validate checks the config for obvious misconfiguration.
func (c Config) Validate() error {
	if len(c.Hosts) == 0 {
		return ErrNoHosts
	}
	if c.Namespace == "" {
		return fmt.Errorf("zkclient: namespace must not be empty")
	}
	return nil
}

// IClient defines the interface for a session-oriented coordination-service
// client. A client is created unconnected; Connect establishes the session.
// Implementations are not required to be safe for concurrent use - a client
// is owned by exactly one connection scope at a time.
type IClient interface {
	// Connect establishes a session, blocking until the session is live or
	// the connect timeout elapses.
	Connect() error

	// Close tears the session down. Safe to call on an unconnected client.
	Close()

	// Reconnect tears the current session down and establishes a new one.
	Reconnect() error

	// NewLock returns an exclusive lock rooted at the given absolute path.
	// The lock is transient: it is valid for a single acquire/release
	// cycle and must not be reused.
	NewLock(path string) ILock
}

// ILock is a single-use exclusive lock on a ZooKeeper path.
type ILock interface {
	// Acquire attempts to take the lock. With blocking=false it returns
	// (false, nil) immediately when the lock is contended. With
	// blocking=true it waits up to timeout (forever if timeout <= 0) and
	// returns ErrAcquireTimeout when the deadline passes. Session failures
	// surface as ErrSessionClosed.
	Acquire(blocking bool, timeout time.Duration) (bool, error)

	// Release gives the lock up. It must only be called after a
	// successful Acquire.
	Release() error
}
