package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/metastore"
	"github.com/ferg-cod3s/contextcore/internal/sync"
)

// WatcherRegistry tracks active filesystem watchers, delegating the actual
// fsnotify plumbing to internal/sync.Synchronizer and mirroring
// registrations to the metastore so active watchers can be resumed after
// a process restart (spec.md §4.H watcher registry contract).
type WatcherRegistry struct {
	store *metastore.Store
	sync  *sync.Synchronizer
}

// NewWatcherRegistry constructs a WatcherRegistry.
func NewWatcherRegistry(store *metastore.Store, synchronizer *sync.Synchronizer) *WatcherRegistry {
	return &WatcherRegistry{store: store, sync: synchronizer}
}

// Watch registers and starts a watcher over root, rejecting a duplicate
// watch on the same root with coreerrors.KindAlreadyWatching.
func (w *WatcherRegistry) Watch(ctx context.Context, projectID, datasetID, root string, ignorePatterns []string, run sync.Run) (string, error) {
	id := uuid.NewString()

	if err := w.sync.Watch(root, ignorePatterns, run); err != nil {
		return "", err
	}

	state := &metastore.WatcherState{
		ID:        id,
		ProjectID: projectID,
		DatasetID: datasetID,
		RootPath:  root,
		Active:    true,
	}
	if err := w.store.UpsertWatcher(ctx, state); err != nil {
		_ = w.sync.Unwatch(root)
		return "", err
	}
	return id, nil
}

// Stop stops a watcher by its root path and marks it inactive.
func (w *WatcherRegistry) Stop(ctx context.Context, root string) error {
	if err := w.sync.Unwatch(root); err != nil {
		return err
	}
	return w.store.DeactivateWatcherByRoot(ctx, root)
}

// List returns every watcher marked active in the metastore, for
// resuming watches on process start.
func (w *WatcherRegistry) List(ctx context.Context) ([]*metastore.WatcherState, error) {
	states, err := w.store.ListActiveWatchers(ctx)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "list active watchers", err)
	}
	return states, nil
}
