// Package zkclient provides the session-oriented ZooKeeper client consumed
// by the connection manager and the lock engine. It wraps the go-zookeeper
// protocol implementation behind the small IClient/ILock interfaces so that
// everything above it can be exercised against fakes.
//
// Core Functionality:
//   - Session establishment with an explicit connect timeout (Connect blocks
//     until the session is live)
//   - Session teardown and repair (Close, Reconnect)
//   - Single-use exclusive locks on hierarchical paths (NewLock)
//
// Implementation Approach:
//
//	Locks follow the standard ZooKeeper exclusive-lock recipe. Acquire
//	creates a protected ephemeral-sequential contender node under the lock
//	path and waits until that node carries the lowest sequence number,
//	watching only its immediate predecessor so that a release wakes exactly
//	one waiter. The recipe is written against the raw zk primitives because
//	the bundled zk.Lock supports neither non-blocking attempts nor
//	acquisition timeouts, and both are part of this package's contract.
//
// Error Taxonomy:
//
//	All session-level failures (connection closed, session expired or
//	moved) are folded into ErrSessionClosed so that callers can make the
//	repair decision with a single errors.Is check. A blocking Acquire that
//	outlives its timeout fails with ErrAcquireTimeout; a non-blocking
//	Acquire that loses the race returns (false, nil) without error.
//
// Ownership:
//
//	A client is owned by exactly one connection scope at a time and is not
//	safe for concurrent use across goroutines. ILock values are transient:
//	one acquire/release cycle each, never reused.
package zkclient
