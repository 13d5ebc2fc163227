package index

import (
	"sync"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/store"
)

// writeGuard owns the text index writer side and the metadata store. Every
// mutation of either runs inside guard.run, one at a time, so a second
// writer handle is never requested and metadata never changes without the
// matching index commit.
//
// If a section panics the guard is poisoned: state may be half-mutated, so
// every later section panics instead of running.
type writeGuard struct {
	mu       sync.Mutex
	poisoned bool
	access   writeAccess
}

// writeAccess is what a section may touch.
type writeAccess struct {
	index    store.TextIndex
	metadata *store.MetadataStore
}

func newWriteGuard(idx store.TextIndex, metadata *store.MetadataStore) *writeGuard {
	return &writeGuard{access: writeAccess{index: idx, metadata: metadata}}
}

// run executes fn exclusively.
func (g *writeGuard) run(fn func(w *writeAccess) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned {
		panic(lderrors.New(lderrors.ErrCodeIndexPoisoned,
			"search index guard is poisoned by an earlier panic", nil))
	}

	completed := false
	defer func() {
		if !completed {
			g.poisoned = true
		}
	}()

	err := fn(&g.access)
	completed = true
	return err
}

// shutdown executes fn exclusively even when the guard is poisoned, so
// resources are still released on exit.
func (g *writeGuard) shutdown(fn func(w *writeAccess) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(&g.access)
}

// isPoisoned reports whether an earlier section panicked.
func (g *writeGuard) isPoisoned() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.poisoned
}
