package locks

import (
	"context"
	"sync"
)

// heldKey identifies one held lock within an execution context. The pid
// dimension makes entries inherited across a process fork inert: a child
// process computes a different pid and therefore never treats the parent's
// held keys as its own (the remote session is not inherited safely across
// a fork, so it must not).
type heldKey struct {
	lock *Lock
	pid  int
	key  string
}

type heldScopeKey struct{}

// heldScope tracks the concrete keys currently held on one call chain. It
// is carried on the context so that nested invocations of the same Lock
// with the same concrete key degrade to reentrant no-ops instead of
// deadlocking against themselves.
type heldScope struct {
	mu   sync.Mutex
	held map[heldKey]struct{}
}

func newHeldScope() *heldScope {
	return &heldScope{held: make(map[heldKey]struct{})}
}

func withHeldScope(ctx context.Context, s *heldScope) context.Context {
	return context.WithValue(ctx, heldScopeKey{}, s)
}

func heldScopeFrom(ctx context.Context) *heldScope {
	s, _ := ctx.Value(heldScopeKey{}).(*heldScope)
	return s
}

func (s *heldScope) contains(k heldKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[k]
	return ok
}

func (s *heldScope) add(k heldKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[k] = struct{}{}
}

func (s *heldScope) remove(k heldKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, k)
}
