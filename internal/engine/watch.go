package engine

import (
	"context"

	"github.com/ferg-cod3s/contextcore/internal/metastore"
)

// WatchLocal starts a debounced filesystem watch over path, re-running
// SyncLocal on every coalesced batch of changes, per spec.md §6's
// watchLocal operation. Returns a KindAlreadyWatching error if path is
// already being watched.
func (e *Engine) WatchLocal(ctx context.Context, path, project, dataset string, ignorePatterns []string) (string, error) {
	project = e.resolveProject(project)
	dataset = e.resolveDataset(dataset)

	if _, _, err := e.ensureScope(ctx, project, dataset); err != nil {
		return "", err
	}

	run := func() error {
		_, err := e.SyncLocal(context.Background(), path, project, dataset, ignorePatterns)
		return err
	}

	return e.watchers.Watch(ctx, project, dataset, path, ignorePatterns, run)
}

// StopWatching stops the watch registered over path, per spec.md §6's
// stopWatching operation.
func (e *Engine) StopWatching(ctx context.Context, path string) error {
	return e.watchers.Stop(ctx, path)
}

// WatchersList returns every watcher active for project, per spec.md §6's
// watchersList operation.
func (e *Engine) WatchersList(ctx context.Context, project string) ([]*metastore.WatcherState, error) {
	all, err := e.watchers.List(ctx)
	if err != nil {
		return nil, err
	}
	if project == "" {
		return all, nil
	}
	out := make([]*metastore.WatcherState, 0, len(all))
	for _, w := range all {
		if w.ProjectID == project {
			out = append(out, w)
		}
	}
	return out, nil
}

// JobGet returns a job's current status, per spec.md §6's jobGet operation.
func (e *Engine) JobGet(ctx context.Context, jobID string) (*metastore.IngestionJob, error) {
	return e.jobs.GetJob(ctx, jobID)
}

// JobCancel cancels a running job, per spec.md §6's jobCancel operation.
func (e *Engine) JobCancel(jobID string) error {
	return e.jobs.CancelJob(jobID)
}
