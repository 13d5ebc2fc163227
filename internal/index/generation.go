package index

import (
	"log/slog"
	"sync/atomic"

	"github.com/Aman-CERP/launchdex/internal/store"
)

// generation pairs an index snapshot with the metadata view committed
// alongside it. Searches hold a reference for their whole duration; the
// snapshot is closed when the last reference goes away.
type generation struct {
	number   uint64
	snapshot store.Snapshot
	metadata *store.MetadataView
	refs     atomic.Int64
}

// newGeneration returns a generation holding one reference for its publisher.
func newGeneration(number uint64, snap store.Snapshot, metadata *store.MetadataView) *generation {
	g := &generation{number: number, snapshot: snap, metadata: metadata}
	g.refs.Store(1)
	return g
}

func (g *generation) acquire() {
	g.refs.Add(1)
}

func (g *generation) release() {
	if g.refs.Add(-1) != 0 {
		return
	}
	if err := g.snapshot.Close(); err != nil {
		slog.Warn("snapshot_close_failed",
			slog.Uint64("generation", g.number),
			slog.String("error", err.Error()))
	}
}
