// Package jobs tracks in-flight and historical ingestion runs and watcher
// registrations, grounded on the teacher's DefaultIndexController
// status/cancellation pattern (internal/indexer/controller.go) generalized
// from one global job to a registry of concurrent jobs, and mirrored
// durably through internal/metastore since spec.md requires jobs survive
// process restart (the teacher never persisted job state).
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/ingest"
	"github.com/ferg-cod3s/contextcore/internal/metastore"
)

// RunFunc performs one ingestion run, reporting progress via the given
// callback, and returns the chunk count indexed or an error.
type RunFunc func(ctx context.Context, onProgress ingest.ProgressFunc) (int, error)

// job is the in-memory record backing one IngestionJob row.
type job struct {
	mu       sync.Mutex
	record   metastore.IngestionJob
	cancel   context.CancelFunc
	finished chan struct{}
}

// Registry tracks ingestion jobs in memory, guarded by a RWMutex per the
// teacher's idiom, with every state transition mirrored to
// internal/metastore for durability.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*job
	store *metastore.Store
}

// NewRegistry constructs a Registry backed by store.
func NewRegistry(store *metastore.Store) *Registry {
	return &Registry{jobs: make(map[string]*job), store: store}
}

// StartJob launches run in the background under a new job id, persisting
// its initial row (status running) to the metastore before returning.
func (r *Registry) StartJob(ctx context.Context, projectID, datasetID, sourceKind string, run RunFunc) (string, error) {
	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())

	record := metastore.IngestionJob{
		ID:         id,
		ProjectID:  projectID,
		DatasetID:  datasetID,
		SourceKind: sourceKind,
		Status:     metastore.JobStatusRunning,
		Phase:      "starting",
		StartedAt:  time.Now(),
	}
	if err := r.store.CreateJob(ctx, &record); err != nil {
		cancel()
		return "", err
	}

	j := &job{record: record, cancel: cancel, finished: make(chan struct{})}
	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	go r.run(runCtx, j, run)

	return id, nil
}

func (r *Registry) run(ctx context.Context, j *job, run RunFunc) {
	defer close(j.finished)

	onProgress := func(p ingest.Progress) {
		var progress float64
		if p.TotalFiles > 0 {
			progress = float64(p.FilesProcessed) / float64(p.TotalFiles)
		}

		j.mu.Lock()
		j.record.Phase = string(p.Phase)
		j.record.FilesProcessed = p.FilesProcessed
		j.record.TotalFiles = p.TotalFiles
		j.record.ChunksCreated = p.ChunksCreated
		if p.LastError != "" {
			j.record.LastError = p.LastError
		}
		j.mu.Unlock()

		_ = r.store.UpdateJobProgress(context.Background(), j.record.ID, string(p.Phase), progress, p.FilesProcessed, p.ChunksCreated)
	}

	chunks, err := run(ctx, onProgress)

	j.mu.Lock()
	j.record.ChunksCreated = chunks
	var status metastore.JobStatus
	var lastError string
	switch {
	case err != nil && coreerrors.Is(err, coreerrors.KindCancelled):
		status = metastore.JobStatusCancelled
	case err != nil:
		status = metastore.JobStatusFailed
		lastError = err.Error()
	default:
		status = metastore.JobStatusCompleted
		j.record.Phase = "done"
	}
	j.record.Status = status
	j.record.LastError = lastError
	now := time.Now()
	j.record.FinishedAt = &now
	j.mu.Unlock()

	_ = r.store.TransitionJob(context.Background(), j.record.ID, status, lastError)
}

// GetJob returns a job's current status, preferring the live in-memory
// record and falling back to the metastore for jobs from a prior process.
func (r *Registry) GetJob(ctx context.Context, id string) (*metastore.IngestionJob, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if ok {
		j.mu.Lock()
		defer j.mu.Unlock()
		record := j.record
		return &record, nil
	}
	return r.store.GetJob(ctx, id)
}

// CancelJob cancels a running job. Returns coreerrors.KindNotFound if the
// job is not tracked in memory (already finished, or from a prior process).
func (r *Registry) CancelJob(id string) error {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return coreerrors.New(coreerrors.KindNotFound, "job not running").WithResource(id)
	}
	select {
	case <-j.finished:
		return coreerrors.New(coreerrors.KindNotFound, "job not running").WithResource(id)
	default:
	}
	j.cancel()
	return nil
}

// ListActive returns the ids of every job still running in this process.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.jobs))
	for id, j := range r.jobs {
		select {
		case <-j.finished:
		default:
			ids = append(ids, id)
		}
	}
	return ids
}
