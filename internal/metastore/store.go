package metastore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// Store is a SQLite-backed metadata store, following the teacher's
// connection-setup idiom: single connection for :memory:, schema created
// idempotently on open.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to a metadata database at path (":memory:" for
// an ephemeral store).
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "create metastore directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "open metastore", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "init metastore schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		name TEXT NOT NULL,
		is_global INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_datasets_project ON datasets(project_id);

	CREATE TABLE IF NOT EXISTS collection_bindings (
		dataset_id TEXT PRIMARY KEY REFERENCES datasets(id),
		collection_name TEXT NOT NULL UNIQUE,
		dimensions INTEGER NOT NULL,
		backend TEXT NOT NULL DEFAULT 'dense',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS web_pages (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL REFERENCES datasets(id),
		url TEXT NOT NULL,
		title TEXT,
		fetched_at INTEGER NOT NULL,
		hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_webpages_dataset ON web_pages(dataset_id);

	CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		dataset_id TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		status TEXT NOT NULL,
		phase TEXT,
		progress REAL NOT NULL DEFAULT 0,
		files_processed INTEGER NOT NULL DEFAULT 0,
		total_files INTEGER NOT NULL DEFAULT 0,
		chunks_created INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_dataset ON ingestion_jobs(dataset_id);

	CREATE TABLE IF NOT EXISTS watchers (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		dataset_id TEXT NOT NULL,
		root_path TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL REFERENCES datasets(id),
		grantee_id TEXT NOT NULL,
		permission TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_shares_grantee ON shares(grantee_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateProject idempotently inserts a project; if one with this ID
// already exists, its name and updated_at are overwritten instead.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		p.ID, p.Name, now, now)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "create project", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, coreerrors.New(coreerrors.KindNotFound, "project not found").WithResource(id)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "get project", err)
	}
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return &p, nil
}

// CreateDataset idempotently inserts a dataset.
func (s *Store) CreateDataset(ctx context.Context, d *Dataset) error {
	now := time.Now().Unix()
	global := 0
	if d.Global {
		global = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, project_id, name, is_global, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		d.ID, d.ProjectID, d.Name, global, now, now)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "create dataset", err)
	}
	return nil
}

// GetDataset retrieves a dataset by ID.
func (s *Store) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	var d Dataset
	var global int
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, is_global, created_at, updated_at FROM datasets WHERE id = ?`, id,
	).Scan(&d.ID, &d.ProjectID, &d.Name, &global, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, coreerrors.New(coreerrors.KindNotFound, "dataset not found").WithResource(id)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "get dataset", err)
	}
	d.Global = global != 0
	d.CreatedAt = time.Unix(created, 0)
	d.UpdatedAt = time.Unix(updated, 0)
	return &d, nil
}

// ListDatasetsByProject returns all datasets owned by a project.
func (s *Store) ListDatasetsByProject(ctx context.Context, projectID string) ([]*Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, is_global, created_at, updated_at FROM datasets WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "list datasets", err)
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		var d Dataset
		var global int
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &global, &created, &updated); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "scan dataset", err)
		}
		d.Global = global != 0
		d.CreatedAt = time.Unix(created, 0)
		d.UpdatedAt = time.Unix(updated, 0)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ListGlobalDatasets returns every dataset marked global, regardless of
// owning project.
func (s *Store) ListGlobalDatasets(ctx context.Context) ([]*Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, is_global, created_at, updated_at FROM datasets WHERE is_global = 1`)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "list global datasets", err)
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		var d Dataset
		var global int
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &global, &created, &updated); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "scan dataset", err)
		}
		d.Global = global != 0
		d.CreatedAt = time.Unix(created, 0)
		d.UpdatedAt = time.Unix(updated, 0)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// BindCollection records the vector-index collection backing a dataset.
func (s *Store) BindCollection(ctx context.Context, b *CollectionBinding) error {
	backend := b.Backend
	if backend == "" {
		backend = "dense"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_bindings (dataset_id, collection_name, dimensions, backend, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dataset_id) DO UPDATE SET collection_name = excluded.collection_name, dimensions = excluded.dimensions, backend = excluded.backend`,
		b.DatasetID, b.CollectionName, b.Dimensions, backend, time.Now().Unix())
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "bind collection", err)
	}
	return nil
}

// GetCollectionBinding returns the collection backing a dataset.
func (s *Store) GetCollectionBinding(ctx context.Context, datasetID string) (*CollectionBinding, error) {
	var b CollectionBinding
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT dataset_id, collection_name, dimensions, backend, created_at FROM collection_bindings WHERE dataset_id = ?`, datasetID,
	).Scan(&b.DatasetID, &b.CollectionName, &b.Dimensions, &b.Backend, &created)
	if err == sql.ErrNoRows {
		return nil, coreerrors.New(coreerrors.KindNotFound, "collection binding not found").WithResource(datasetID)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "get collection binding", err)
	}
	b.CreatedAt = time.Unix(created, 0)
	return &b, nil
}

// ListSharesForGrantee returns every share granted to granteeID.
func (s *Store) ListSharesForGrantee(ctx context.Context, granteeID string) ([]*Share, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, grantee_id, permission, created_at FROM shares WHERE grantee_id = ?`, granteeID)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "list shares", err)
	}
	defer rows.Close()

	var out []*Share
	for rows.Next() {
		var sh Share
		var created int64
		if err := rows.Scan(&sh.ID, &sh.DatasetID, &sh.GranteeID, &sh.Permission, &created); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "scan share", err)
		}
		sh.CreatedAt = time.Unix(created, 0)
		out = append(out, &sh)
	}
	return out, rows.Err()
}

// CreateShare grants access to a dataset.
func (s *Store) CreateShare(ctx context.Context, sh *Share) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shares (id, dataset_id, grantee_id, permission, created_at) VALUES (?, ?, ?, ?, ?)`,
		sh.ID, sh.DatasetID, sh.GranteeID, sh.Permission, time.Now().Unix())
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "create share", err)
	}
	return nil
}

// RevokeShare removes a share by ID.
func (s *Store) RevokeShare(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE id = ?`, id)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "revoke share", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return coreerrors.New(coreerrors.KindNotFound, "share not found").WithResource(id)
	}
	return nil
}
