package locks

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is a process-wide mapping from key template to the Lock that
// registered it. It exists to catch accidental key collisions at
// construction time, independent of which goroutine constructs the Lock.
// Uniqueness is exact-string over the raw template: two templates that
// could collide only after parameter substitution are not detected (known
// limitation of the contract, not of the implementation).
type Registry struct {
	keys *xsync.MapOf[string, *Lock]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: xsync.NewMapOf[string, *Lock]()}
}

// DefaultRegistry is the registry used by New. Libraries embedding several
// independent lock namespaces in one process can create their own.
var DefaultRegistry = NewRegistry()

// register atomically claims the template for l. The LoadOrStore makes the
// uniqueness check and the insert one operation, so concurrent
// registrations of the same template race safely: exactly one wins.
func (r *Registry) register(template string, l *Lock) error {
	if _, loaded := r.keys.LoadOrStore(template, l); loaded {
		return &DuplicateKeyError{Key: template}
	}
	return nil
}

// unregister releases the template slot, but only if it is still owned by
// l. Called from Lock.Close - release is explicit, never finalizer-driven.
func (r *Registry) unregister(template string, l *Lock) {
	r.keys.Compute(template, func(cur *Lock, ok bool) (*Lock, bool) {
		if !ok || cur != l {
			return cur, !ok // leave a foreign entry untouched
		}
		return nil, true // delete
	})
}

// Registered reports whether the template is currently claimed.
func (r *Registry) Registered(template string) bool {
	_, ok := r.keys.Load(template)
	return ok
}
