// Package connection manages the lifetime of the shared ZooKeeper client
// across nested usage scopes.
//
// A request handler, a management command and a lock acquisition may all
// need "the" connection at overlapping times on the same call chain.
// Opening and closing a session for each of them would be wasteful, and
// sharing one session across unrelated call chains would be unsafe. The
// Manager resolves this with reference-counted scopes carried on the
// context: each logical borrower brackets its work with EnterScope and
// ExitScope, the first Client call inside the chain opens the session, and
// the outermost exit closes it.
//
// Invariants:
//   - scope nesting is strictly balanced (LIFO) per context chain; an
//     unbalanced ExitScope panics
//   - the refcount is never negative; a client handle exists only while
//     the refcount is positive
//   - within one open scope chain Client always returns the same handle
//     and connects at most once
//
// Session repair:
//
//	When a scope exits with an error that wraps zkclient.ErrSessionClosed
//	and a client handle survives the exit (i.e. an outer scope is still
//	open), the handle is reconnected in place so the outer scope does not
//	keep working against a dead session. The triggering error is never
//	swallowed: ExitScope only observes it, the caller keeps returning it.
//
// The context chain is the unit of sharing: each logical task derives its
// scopes from one context, so two goroutines with independent contexts hold
// independent clients, while nested work on one chain shares a single
// refcounted handle.
package connection
