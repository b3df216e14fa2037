package connection

import (
	"context"
	"errors"
	"sync"

	"github.com/wedeploy/zklocks/lib/zkclient"
	"go.uber.org/zap"
)

// Factory creates the client a scope connects with. It is invoked at most
// once per open scope chain, on the first Client call.
type Factory func() (zkclient.IClient, error)

// Manager multiplexes nested "I need the connection" scopes onto one client
// per execution context. Scopes are carried on the context: EnterScope
// attaches (or reuses) a scope entry, ExitScope balances it, and Client is
// only valid in between. The client is opened lazily on the first Client
// call and closed exactly when the outermost scope exits.
type Manager struct {
	factory Factory
	log     *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for scope lifecycle messages.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a Manager that connects through the given factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// scopeKey keys the scope entry in the context. It embeds the manager so
// that two managers never share an entry.
type scopeKey struct {
	m *Manager
}

// scopeEntry is the per-execution-context state: the nesting depth and the
// lazily created client. All mutations happen under mu so that the
// open/close decision stays atomic even when nested enters and exits
// interleave with deferred teardown.
type scopeEntry struct {
	mu     sync.Mutex
	count  int
	client zkclient.IClient
}

func (m *Manager) entryFrom(ctx context.Context) *scopeEntry {
	e, _ := ctx.Value(scopeKey{m}).(*scopeEntry)
	return e
}

// EnterScope opens (or nests into) a connection scope. The returned context
// must be used for the matching ExitScope and for every Client call made
// within the scope. Entering has no side effect on the connection itself.
func (m *Manager) EnterScope(ctx context.Context) context.Context {
	if e := m.entryFrom(ctx); e != nil {
		e.mu.Lock()
		e.count++
		e.mu.Unlock()
		return ctx
	}
	e := &scopeEntry{count: 1}
	return context.WithValue(ctx, scopeKey{m}, e)
}

// ExitScope closes one nesting level. When the outermost level exits, a
// live client is closed and the handle cleared.
//
// err is the error (if any) the scope is exiting with. If it denotes a
// severed session and a client handle still exists after the exit, the
// handle is reconnected so that the next scope does not inherit a dead
// session. The error itself keeps propagating in the caller; reconnection
// decorates the exit, it never replaces the failure signal.
//
// ExitScope panics when called without a matching EnterScope - that is a
// programmer error, not a recoverable condition.
func (m *Manager) ExitScope(ctx context.Context, err error) {
	e := m.entryFrom(ctx)
	if e == nil {
		panic("connection: ExitScope called without a matching EnterScope")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 {
		panic("connection: ExitScope called without a matching EnterScope")
	}
	e.count--
	if e.count == 0 && e.client != nil {
		e.client.Close()
		e.client = nil
	}
	if err != nil && errors.Is(err, zkclient.ErrSessionClosed) && e.client != nil {
		m.log.Warn("session closed inside an open scope, reconnecting", zap.Error(err))
		if rerr := e.client.Reconnect(); rerr != nil {
			m.log.Error("reconnect after session loss failed", zap.Error(rerr))
		}
	}
}

// Client returns the connected client for the current scope, creating and
// connecting it on first use. Repeated calls within one open scope return
// the same handle without reconnecting. A Connect failure is reported only
// by the call that attempted it: later calls in the same scope hand back
// the stored, never-connected handle without retrying, and the scope exit
// tears it down. This keeps Client idempotent per scope; a caller that
// wants a fresh attempt opens a fresh scope.
//
// Client panics when called outside an open scope - acquire one with
// EnterScope first.
func (m *Manager) Client(ctx context.Context) (zkclient.IClient, error) {
	e := m.entryFrom(ctx)
	if e == nil {
		panic("connection: Client called outside of a managed scope, call EnterScope first")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 {
		panic("connection: Client called outside of a managed scope, call EnterScope first")
	}
	if e.client == nil {
		client, err := m.factory()
		if err != nil {
			return nil, err
		}
		// The handle is stored before Connect so that a failed connect
		// still leaves a client for the exit path to close or repair.
		e.client = client
		if err := client.Connect(); err != nil {
			return nil, err
		}
	}
	return e.client, nil
}

// Managed reports whether ctx is inside an open scope of this manager.
func (m *Manager) Managed(ctx context.Context) bool {
	e := m.entryFrom(ctx)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count > 0
}

// HasClient reports whether the scope on ctx currently holds a client
// handle. It exists for introspection and tests; production code should
// just call Client.
func (m *Manager) HasClient(ctx context.Context) bool {
	e := m.entryFrom(ctx)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client != nil
}
