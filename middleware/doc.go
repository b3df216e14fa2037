// Package middleware contains the host-environment integration points of
// the lock library: a per-request http middleware that brackets request
// handling in a connection scope, and a per-worker initialization hook for
// process or goroutine pools whose teardown cannot be guaranteed.
//
// Both hooks touch the core only through EnterScope/ExitScope on the
// connection manager.
package middleware
