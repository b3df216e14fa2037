package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/wedeploy/zklocks/lib/connection"
)

// Connection wraps an http.Handler so that the whole request runs inside
// one connection scope. Locks acquired from the request context then share
// a single session per request instead of opening one per acquisition.
//
// The scope exit is deferred, so it balances even when the inner handler
// panics; the panic continues to propagate to the server's recovery layer.
func Connection(manager *connection.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := manager.EnterScope(r.Context())
			defer manager.ExitScope(ctx, nil)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WorkerInit opens a connection scope for the lifetime of a worker process
// or long-lived worker goroutine. It returns the scoped context to run the
// worker with and an idempotent finalizer for orderly teardown.
//
// The finalizer may be called more than once and may also never run at all
// (a worker process dying without cleanup leaks nothing remotely: the
// session and its ephemeral nodes expire server-side).
func WorkerInit(ctx context.Context, manager *connection.Manager) (context.Context, func()) {
	ctx = manager.EnterScope(ctx)
	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			manager.ExitScope(ctx, nil)
		})
	}
}
