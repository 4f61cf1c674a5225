package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/statusfeed/internal/store"
)

// finalFlushTimeout bounds the save performed when Run is cancelled.
const finalFlushTimeout = 5 * time.Second

// Flusher periodically saves a store through a [Snapshotter].
//
// A save only happens when the store generation has moved since the last
// successful save. Failed saves are logged and retried on the next tick.
type Flusher struct {
	store    store.Store
	snap     Snapshotter
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	saved uint64
	dirty bool
}

// NewFlusher creates a [Flusher]. The store's current generation is taken as
// already saved, so call it after restoring the loaded snapshot.
func NewFlusher(st store.Store, sn Snapshotter, interval time.Duration, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{
		store:    st,
		snap:     sn,
		interval: interval,
		logger:   logger,
		saved:    st.Generation(),
	}
}

// Flush saves the store if it changed since the last save.
// It reports whether a save was performed.
func (f *Flusher) Flush(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	gen := f.store.Generation()
	if gen == f.saved && !f.dirty {
		return false, nil
	}

	// a mutation landing between Generation and Snapshot is included in the
	// saved data and triggers one redundant save next time
	if err := f.snap.Save(ctx, f.store.Snapshot()); err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	f.saved = gen
	f.dirty = false
	return true, nil
}

// MarkDirty forces the next Flush to save even if the generation has not
// moved, for state the snapshotter has never seen.
func (f *Flusher) MarkDirty() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty = true
}

// Run flushes on every tick until ctx is cancelled, then performs a final
// flush with a fresh context. It always returns nil so that a failing disk
// never takes the service down.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			defer cancel()
			if saved, err := f.Flush(finalCtx); err != nil {
				f.logger.Error("final snapshot save failed", "error", err)
			} else if saved {
				f.logger.Info("final snapshot saved", "generation", f.store.Generation())
			}
			return nil

		case <-ticker.C:
			if saved, err := f.Flush(ctx); err != nil {
				f.logger.Warn("snapshot save failed, will retry", "error", err)
			} else if saved {
				f.logger.Debug("snapshot saved", "generation", f.store.Generation())
			}
		}
	}
}
