package locks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/wedeploy/zklocks/lib/connection"
	"github.com/wedeploy/zklocks/lib/zkclient"
	"go.uber.org/zap"
)

// Acquisition counters, exposed in the VictoriaMetrics text format through
// metrics.WritePrometheus.
var (
	acquiredTotal  = metrics.NewCounter("zklocks_acquired_total")
	reentrantTotal = metrics.NewCounter("zklocks_reentrant_total")
	contendedTotal = metrics.NewCounter("zklocks_contended_total")
	timeoutTotal   = metrics.NewCounter("zklocks_timeout_total")
)

// Lock is an exclusive distributed lock backed by ZooKeeper, identified by
// a logical key template. Invoking it with parameters derives a concrete
// key, and the guarded body runs while the remote lock on
// /locks/{namespace}/{key} is held. A Lock is reentrant per concrete key
// within one call chain and process; see Do.
//
// Construction registers the template in a process-wide registry and fails
// with DuplicateKeyError while another live Lock owns the same template.
// Close releases the slot.
type Lock struct {
	registry  *Registry
	manager   *connection.Manager
	template  *KeyTemplate
	namespace string
	log       *zap.Logger
	closed    atomic.Bool
}

// Option configures a Lock at construction time.
type Option func(*Lock)

// WithLogger sets the logger used for acquisition messages.
func WithLogger(log *zap.Logger) Option {
	return func(l *Lock) { l.log = log }
}

// WithRegistry registers the Lock in reg instead of DefaultRegistry.
func WithRegistry(reg *Registry) Option {
	return func(l *Lock) { l.registry = reg }
}

// New parses and registers the key template and returns the Lock. The
// manager supplies the connection; namespace becomes the middle component
// of the remote lock path. Fails with DuplicateKeyError while another live
// Lock owns the same template.
func New(manager *connection.Manager, template, namespace string, opts ...Option) (*Lock, error) {
	tmpl, err := ParseTemplate(template)
	if err != nil {
		return nil, err
	}
	l := &Lock{
		registry:  DefaultRegistry,
		manager:   manager,
		template:  tmpl,
		namespace: namespace,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.registry.register(template, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Close unregisters the key template, making it available for a new Lock.
// The Lock must not be invoked afterwards. Close is idempotent and safe to
// call concurrently with Do.
func (l *Lock) Close() {
	if l.closed.Swap(true) {
		return
	}
	l.registry.unregister(l.template.String(), l)
}

// Template returns the raw key template.
func (l *Lock) Template() string { return l.template.String() }

// callOptions collects the per-invocation settings of Do.
type callOptions struct {
	blocking bool
	timeout  time.Duration
	params   map[string]any
}

// CallOption configures a single Do invocation.
type CallOption func(*callOptions)

// NonBlocking makes the acquisition fail fast with LockedError instead of
// waiting when the lock is contended.
func NonBlocking() CallOption {
	return func(o *callOptions) { o.blocking = false }
}

// WithTimeout bounds a blocking acquisition. Zero (the default) waits
// indefinitely.
func WithTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = timeout }
}

// WithParam fills one template placeholder. Parameters that match no
// placeholder are ignored.
func WithParam(name string, value any) CallOption {
	return func(o *callOptions) { o.params[name] = value }
}

// WithParams fills several template placeholders at once.
func WithParams(params map[string]any) CallOption {
	return func(o *callOptions) {
		for k, v := range params {
			o.params[k] = v
		}
	}
}

// Do runs body while holding the remote lock for the concrete key derived
// from the template and the given parameters.
//
// If the current call chain (the context) already holds the same concrete
// key through this Lock in this process, the call is a reentrant no-op:
// body runs without any remote interaction and no state changes on exit.
//
// Otherwise Do enters the connection scope, acquires the remote lock at
// /locks/{namespace}/{key}, runs body, and - on every exit path - releases
// the remote lock, unmarks the key and exits the scope. Failure modes:
//   - MissingParameterError: a placeholder was left unfilled (before any
//     remote interaction)
//   - LockedError: non-blocking acquisition found the lock held
//   - LockTimeoutError: blocking acquisition exceeded its timeout
//   - zkclient.ErrSessionClosed passes through untranslated; the scope exit
//     repairs the session for any still-open outer scope, but the caller
//     must know the body may not have run under lock protection
func (l *Lock) Do(ctx context.Context, body func(context.Context) error, opts ...CallOption) (retErr error) {
	if l.closed.Load() {
		return fmt.Errorf("%w: %s", ErrClosed, l.template.String())
	}
	o := callOptions{blocking: true, params: make(map[string]any)}
	for _, opt := range opts {
		opt(&o)
	}

	key, err := l.template.Format(o.params)
	if err != nil {
		return err
	}

	scope := heldScopeFrom(ctx)
	if scope == nil {
		scope = newHeldScope()
		ctx = withHeldScope(ctx, scope)
	}
	hk := heldKey{lock: l, pid: os.Getpid(), key: key}
	if scope.contains(hk) {
		reentrantTotal.Inc()
		return body(ctx)
	}

	ctx = l.manager.EnterScope(ctx)
	defer func() {
		l.manager.ExitScope(ctx, retErr)
	}()

	client, err := l.manager.Client(ctx)
	if err != nil {
		return err
	}

	remote := client.NewLock(l.path(key))
	l.log.Info("acquiring lock",
		zap.String("namespace", l.namespace),
		zap.String("key", key),
		zap.Bool("blocking", o.blocking),
		zap.Duration("timeout", o.timeout))

	acquired, err := remote.Acquire(o.blocking, o.timeout)
	if err != nil {
		if errors.Is(err, zkclient.ErrAcquireTimeout) {
			timeoutTotal.Inc()
			return &LockTimeoutError{Key: key}
		}
		return err
	}
	if !acquired {
		contendedTotal.Inc()
		return &LockedError{Key: key}
	}

	acquiredTotal.Inc()
	scope.add(hk)
	defer func() {
		scope.remove(hk)
		if err := remote.Release(); err != nil && retErr == nil {
			retErr = err
		}
	}()

	return body(ctx)
}

// path derives the remote lock path for a concrete key.
func (l *Lock) path(key string) string {
	return fmt.Sprintf("/locks/%s/%s", l.namespace, key)
}
