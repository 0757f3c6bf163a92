// Package lock implements per-instance workflow locks.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/bnema/dbsnap/internal/boundaries/out"
	"github.com/bnema/dbsnap/internal/domain"
)

// compile-time interface check.
var _ out.WorkflowLocker = (*Registry)(nil)

// Registry hands out one guard per instance name at a time.
//
// Exclusion combines:
//   - In-process exclusion via a set of held names guarded by a mutex.
//     A second TryAcquire for a held name fails immediately.
//   - Optional cross-process exclusion via flock(2) on {dir}/{instance}.lock,
//     with a fresh fd per acquisition. Disabled when dir is empty.
type Registry struct {
	dir string

	mu   sync.Mutex
	held map[string]struct{}
}

// New creates a lock registry. An empty dir keeps locking in-process.
func New(dir string) *Registry {
	return &Registry{dir: dir, held: make(map[string]struct{})}
}

// TryAcquire takes the lock for instance without blocking.
// Returns domain.ErrInstanceBusy if it is already held.
func (r *Registry) TryAcquire(_ context.Context, instance string) (out.LockGuard, error) {
	r.mu.Lock()
	if _, busy := r.held[instance]; busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceBusy, instance)
	}
	r.held[instance] = struct{}{}
	r.mu.Unlock()

	g := &guard{registry: r, instance: instance}
	if r.dir == "" {
		return g, nil
	}

	fl, err := r.tryFlock(instance)
	if err != nil {
		r.drop(instance)
		return nil, err
	}
	g.fl = fl
	return g, nil
}

func (r *Registry) tryFlock(instance string) (*flock.Flock, error) {
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock dir %s: %w", r.dir, err)
	}

	path := filepath.Join(r.dir, instance+".lock")
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire flock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s (held by another process)", domain.ErrInstanceBusy, instance)
	}
	return fl, nil
}

func (r *Registry) drop(instance string) {
	r.mu.Lock()
	delete(r.held, instance)
	r.mu.Unlock()
}

type guard struct {
	registry *Registry
	instance string
	fl       *flock.Flock
	once     sync.Once
}

// Release frees the lock. Calling it more than once is harmless.
func (g *guard) Release(_ context.Context) error {
	var err error
	g.once.Do(func() {
		if g.fl != nil {
			if unlockErr := g.fl.Unlock(); unlockErr != nil {
				err = fmt.Errorf("release flock %s: %w", g.fl.Path(), unlockErr)
			}
		}
		g.registry.drop(g.instance)
	})
	return err
}
