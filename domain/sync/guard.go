package sync

import (
	"fmt"
	"sync"
)

// RunGuard enforces single-run-per-collection. Acquire must be paired
// with Release once the run reaches a terminal state or pauses.
type RunGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunGuard creates an empty guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{active: make(map[string]struct{})}
}

// Acquire marks a run active for the collection. It returns
// ErrRunActive if another run already holds the collection.
func (g *RunGuard) Acquire(collection string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[collection]; ok {
		return fmt.Errorf("%w: %s", ErrRunActive, collection)
	}
	g.active[collection] = struct{}{}
	return nil
}

// Release frees the collection for future runs. Releasing a collection
// that is not held is a no-op.
func (g *RunGuard) Release(collection string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, collection)
}

// Active reports whether a run currently holds the collection.
func (g *RunGuard) Active(collection string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[collection]
	return ok
}
