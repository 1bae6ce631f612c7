package metastore

import (
	"context"
	"database/sql"
	"time"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// CreateJob inserts a new ingestion job row.
func (s *Store) CreateJob(ctx context.Context, j *IngestionJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_jobs (id, project_id, dataset_id, source_kind, status, phase, progress, files_processed, total_files, chunks_created, last_error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ProjectID, j.DatasetID, j.SourceKind, j.Status, j.Phase, j.Progress,
		j.FilesProcessed, j.TotalFiles, j.ChunksCreated, j.LastError, j.StartedAt.Unix(), nullableUnix(j.FinishedAt))
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "create job", err)
	}
	return nil
}

// UpdateJobProgress updates a job's progress counters without touching
// status — used for frequent phase-progress callbacks.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, phase string, progress float64, filesProcessed, chunksCreated int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_jobs SET phase = ?, progress = ?, files_processed = ?, chunks_created = ? WHERE id = ?`,
		phase, progress, filesProcessed, chunksCreated, id)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "update job progress", err)
	}
	return nil
}

// TransitionJob moves a job to a new status, rejecting the transition if
// the current status is already terminal — a completed or failed job
// cannot be reopened.
func (s *Store) TransitionJob(ctx context.Context, id string, status JobStatus, lastError string) error {
	current, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return coreerrors.New(coreerrors.KindConflict, "job already in terminal state").WithResource(id)
	}

	var finishedAt interface{}
	if status.Terminal() {
		finishedAt = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE ingestion_jobs SET status = ?, last_error = ?, finished_at = ? WHERE id = ?`,
		status, lastError, finishedAt, id)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "transition job", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*IngestionJob, error) {
	var j IngestionJob
	var started int64
	var finished sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, dataset_id, source_kind, status, phase, progress, files_processed, total_files, chunks_created, last_error, started_at, finished_at
		 FROM ingestion_jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.ProjectID, &j.DatasetID, &j.SourceKind, &j.Status, &j.Phase, &j.Progress,
		&j.FilesProcessed, &j.TotalFiles, &j.ChunksCreated, &j.LastError, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, coreerrors.New(coreerrors.KindNotFound, "job not found").WithResource(id)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "get job", err)
	}
	j.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		t := time.Unix(finished.Int64, 0)
		j.FinishedAt = &t
	}
	return &j, nil
}

// ListActiveJobs returns all jobs not yet in a terminal state.
func (s *Store) ListActiveJobs(ctx context.Context) ([]*IngestionJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, dataset_id, source_kind, status, phase, progress, files_processed, total_files, chunks_created, last_error, started_at, finished_at
		 FROM ingestion_jobs WHERE status IN ('pending', 'running')`)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "list active jobs", err)
	}
	defer rows.Close()

	var out []*IngestionJob
	for rows.Next() {
		var j IngestionJob
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&j.ID, &j.ProjectID, &j.DatasetID, &j.SourceKind, &j.Status, &j.Phase, &j.Progress,
			&j.FilesProcessed, &j.TotalFiles, &j.ChunksCreated, &j.LastError, &started, &finished); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "scan job", err)
		}
		j.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			j.FinishedAt = &t
		}
		out = append(out, &j)
	}
	return out, rows.Err()
}

// ListJobsByProject returns a project's ingestion jobs, most recent first,
// for spec.md §6's history operation.
func (s *Store) ListJobsByProject(ctx context.Context, projectID string, limit int) ([]*IngestionJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, dataset_id, source_kind, status, phase, progress, files_processed, total_files, chunks_created, last_error, started_at, finished_at
		 FROM ingestion_jobs WHERE project_id = ? ORDER BY started_at DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "list jobs by project", err)
	}
	defer rows.Close()

	var out []*IngestionJob
	for rows.Next() {
		var j IngestionJob
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&j.ID, &j.ProjectID, &j.DatasetID, &j.SourceKind, &j.Status, &j.Phase, &j.Progress,
			&j.FilesProcessed, &j.TotalFiles, &j.ChunksCreated, &j.LastError, &started, &finished); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "scan job", err)
		}
		j.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			j.FinishedAt = &t
		}
		out = append(out, &j)
	}
	return out, rows.Err()
}

// UpsertWatcher persists a watcher registration.
func (s *Store) UpsertWatcher(ctx context.Context, w *WatcherState) error {
	active := 0
	if w.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watchers (id, project_id, dataset_id, root_path, active, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET active = excluded.active`,
		w.ID, w.ProjectID, w.DatasetID, w.RootPath, active, time.Now().Unix())
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "upsert watcher", err)
	}
	return nil
}

// DeactivateWatcherByRoot marks every active watcher row over rootPath
// inactive, keyed by root path since a caller stopping a watch knows the
// path it gave Watch, not the generated watcher id.
func (s *Store) DeactivateWatcherByRoot(ctx context.Context, rootPath string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watchers SET active = 0 WHERE root_path = ? AND active = 1`, rootPath)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "deactivate watcher", err)
	}
	return nil
}

// ListActiveWatchers returns every watcher marked active, for restoring
// watch state across process restarts.
func (s *Store) ListActiveWatchers(ctx context.Context) ([]*WatcherState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, dataset_id, root_path, active, created_at FROM watchers WHERE active = 1`)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "list watchers", err)
	}
	defer rows.Close()

	var out []*WatcherState
	for rows.Next() {
		var w WatcherState
		var active int
		var created int64
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.DatasetID, &w.RootPath, &active, &created); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "scan watcher", err)
		}
		w.Active = active != 0
		w.CreatedAt = time.Unix(created, 0)
		out = append(out, &w)
	}
	return out, rows.Err()
}

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
