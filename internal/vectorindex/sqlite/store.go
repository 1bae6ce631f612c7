// Package sqlite implements vectorindex.Gateway over a single SQLite
// database, generalizing the teacher's internal/vectorstore/sqlite
// single-collection Store into one documents_<collection> table pair per
// collection plus a per-collection in-memory HNSW index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

var identPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// collectionState tracks the runtime pieces that live outside SQL: the
// dense index and whether the collection has an FTS5 shadow table.
type collectionState struct {
	dimensions int
	hybrid     bool
	hnsw       *HNSWIndex
}

// Gateway is the SQLite-backed vectorindex.Gateway implementation.
type Gateway struct {
	db *sql.DB

	mu          sync.RWMutex
	collections map[string]*collectionState
}

// NewGateway opens (or creates) a SQLite database at path. path may be
// ":memory:" for an ephemeral, process-local index.
func NewGateway(path string) (*Gateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "open vector index database", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	g := &Gateway{db: db, collections: make(map[string]*collectionState)}
	if err := g.loadExistingCollections(); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

// loadExistingCollections discovers documents_* tables from a prior run so
// a reopened database resumes serving every collection it already had.
func (g *Gateway) loadExistingCollections() error {
	rows, err := g.db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name LIKE 'documents\_%' ESCAPE '\'`)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "enumerate collections", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return coreerrors.Wrap(coreerrors.KindIO, "scan collection table name", err)
		}
		if strings.HasSuffix(name, "_fts") {
			continue
		}
		names = append(names, strings.TrimPrefix(name, "documents_"))
	}
	if err := rows.Err(); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "iterate collection tables", err)
	}

	for _, name := range names {
		var hasFTS int
		_ = g.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`,
			fmt.Sprintf("documents_%s_fts", name)).Scan(&hasFTS)
		st := &collectionState{hnsw: NewHNSWIndex(DefaultHNSWConfig()), hybrid: hasFTS > 0}
		g.collections[name] = st
		if err := g.rehydrateHNSW(name, st); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) rehydrateHNSW(collection string, st *collectionState) error {
	rows, err := g.db.Query(fmt.Sprintf(`SELECT id, vector FROM documents_%s`, collection))
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "rehydrate index", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var vecJSON []byte
		if err := rows.Scan(&id, &vecJSON); err != nil {
			return coreerrors.Wrap(coreerrors.KindIO, "scan vector row", err)
		}
		var vec []float32
		if err := json.Unmarshal(vecJSON, &vec); err != nil {
			continue
		}
		if st.dimensions == 0 {
			st.dimensions = len(vec)
		}
		_ = st.hnsw.Insert(id, vec)
	}
	return rows.Err()
}

func tableName(collection string) (string, error) {
	if !identPattern.MatchString(collection) {
		return "", coreerrors.New(coreerrors.KindValidation, "collection name must already be canonicalized").WithResource(collection)
	}
	return "documents_" + collection, nil
}

// HasCollection reports whether the named collection has been created.
func (g *Gateway) HasCollection(ctx context.Context, name string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.collections[name]
	return ok, nil
}

// CreateCollection creates a dense-only collection.
func (g *Gateway) CreateCollection(ctx context.Context, name string, dimensions int) error {
	return g.createCollection(ctx, name, dimensions, false)
}

// CreateHybridCollection creates a collection with both a dense index and
// an FTS5 shadow table for BM25 / hybrid search.
func (g *Gateway) CreateHybridCollection(ctx context.Context, name string, dimensions int) error {
	return g.createCollection(ctx, name, dimensions, true)
}

func (g *Gateway) createCollection(ctx context.Context, name string, dimensions int, hybrid bool) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.collections[name]; exists {
		return nil
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		vector TEXT NOT NULL,
		sparse TEXT,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s(updated_at);
	`, table, name, table)

	if hybrid {
		schema += fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS %s_fts USING fts5(
			id UNINDEXED,
			content,
			tokenize='porter unicode61'
		);
		CREATE TRIGGER IF NOT EXISTS %s_ai AFTER INSERT ON %s BEGIN
			INSERT INTO %s_fts(id, content) VALUES (new.id, new.content);
		END;
		CREATE TRIGGER IF NOT EXISTS %s_ad AFTER DELETE ON %s BEGIN
			DELETE FROM %s_fts WHERE id = old.id;
		END;
		CREATE TRIGGER IF NOT EXISTS %s_au AFTER UPDATE ON %s BEGIN
			UPDATE %s_fts SET content = new.content WHERE id = old.id;
		END;
		`, table, name, table, table, name, table, table, name, table, table)
	}

	if _, err := g.db.ExecContext(ctx, schema); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "create collection schema", err)
	}

	g.collections[name] = &collectionState{
		dimensions: dimensions,
		hybrid:     hybrid,
		hnsw:       NewHNSWIndex(DefaultHNSWConfig()),
	}
	return nil
}

// DropCollection removes a collection and its backing tables entirely.
func (g *Gateway) DropCollection(ctx context.Context, name string) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	st, exists := g.collections[name]
	if !exists {
		return nil
	}
	stmts := []string{fmt.Sprintf("DROP TABLE IF EXISTS %s", table)}
	if st.hybrid {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s_fts", table))
	}
	for _, stmt := range stmts {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return coreerrors.Wrap(coreerrors.KindIO, "drop collection", err)
		}
	}
	delete(g.collections, name)
	return nil
}

func (g *Gateway) stateFor(name string) (*collectionState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st, ok := g.collections[name]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "collection not found").WithResource(name)
	}
	return st, nil
}

// Upsert inserts or updates one document in collection.
func (g *Gateway) Upsert(ctx context.Context, collection string, doc vectorindex.Document) error {
	return g.UpsertBatch(ctx, collection, []vectorindex.Document{doc})
}

// UpsertBatch inserts or updates multiple documents in one transaction and
// keeps the collection's dense index in sync.
func (g *Gateway) UpsertBatch(ctx context.Context, collection string, docs []vectorindex.Document) error {
	if len(docs) == 0 {
		return nil
	}
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	st, err := g.stateFor(collection)
	if err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "begin upsert transaction", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, vector, sparse, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			vector = excluded.vector,
			sparse = excluded.sparse,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`, table)

	now := time.Now().Unix()
	for _, doc := range docs {
		if doc.ID == "" {
			return coreerrors.New(coreerrors.KindValidation, "document id cannot be empty")
		}
		if len(doc.Vector) == 0 {
			return coreerrors.New(coreerrors.KindValidation, "document vector cannot be empty").WithResource(doc.ID)
		}
		if st.dimensions != 0 && len(doc.Vector) != st.dimensions {
			return coreerrors.New(coreerrors.KindDimensionMismatch,
				fmt.Sprintf("expected dimension %d, got %d", st.dimensions, len(doc.Vector))).WithResource(doc.ID)
		}

		vecJSON, err := json.Marshal(doc.Vector)
		if err != nil {
			return coreerrors.Wrap(coreerrors.KindInternal, "marshal vector", err)
		}
		var sparseJSON []byte
		if doc.Sparse != nil {
			sparseJSON, err = json.Marshal(doc.Sparse)
			if err != nil {
				return coreerrors.Wrap(coreerrors.KindInternal, "marshal sparse vector", err)
			}
		}
		var metaJSON []byte
		if doc.Metadata != nil {
			metaJSON, err = json.Marshal(doc.Metadata)
			if err != nil {
				return coreerrors.Wrap(coreerrors.KindInternal, "marshal metadata", err)
			}
		}

		created := now
		if !doc.CreatedAt.IsZero() {
			created = doc.CreatedAt.Unix()
		}
		updated := now
		if !doc.UpdatedAt.IsZero() {
			updated = doc.UpdatedAt.Unix()
		}

		if _, err := tx.ExecContext(ctx, stmt, doc.ID, doc.Content, vecJSON, sparseJSON, metaJSON, created, updated); err != nil {
			return coreerrors.Wrap(coreerrors.KindIO, "upsert document", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "commit upsert transaction", err)
	}

	g.mu.Lock()
	for _, doc := range docs {
		if st.dimensions == 0 {
			st.dimensions = len(doc.Vector)
		}
		_ = st.hnsw.Remove(doc.ID) // best-effort: clear any stale entry before re-inserting
		_ = st.hnsw.Insert(doc.ID, doc.Vector)
	}
	g.mu.Unlock()

	return nil
}

// Delete removes a document from collection and its dense index.
func (g *Gateway) Delete(ctx context.Context, collection, id string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	st, err := g.stateFor(collection)
	if err != nil {
		return err
	}

	result, err := g.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "delete document", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return coreerrors.New(coreerrors.KindNotFound, "document not found").WithResource(id)
	}
	_ = st.hnsw.Remove(id)
	return nil
}

// Scroll paginates every document in a collection ordered by id, returning
// the next cursor (empty when exhausted).
func (g *Gateway) Scroll(ctx context.Context, collection string, cursor string, limit int) ([]vectorindex.Document, string, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT id, content, vector, metadata, created_at, updated_at FROM %s WHERE id > ? ORDER BY id LIMIT ?`, table)
	rows, err := g.db.QueryContext(ctx, query, cursor, limit+1)
	if err != nil {
		return nil, "", coreerrors.Wrap(coreerrors.KindIO, "scroll collection", err)
	}
	defer rows.Close()

	var docs []vectorindex.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, "", err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", coreerrors.Wrap(coreerrors.KindIO, "iterate scroll results", err)
	}

	next := ""
	if len(docs) > limit {
		next = docs[limit-1].ID
		docs = docs[:limit]
	}
	return docs, next, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(rows rowScanner) (vectorindex.Document, error) {
	var doc vectorindex.Document
	var vecJSON, metaJSON []byte
	var created, updated int64
	if err := rows.Scan(&doc.ID, &doc.Content, &vecJSON, &metaJSON, &created, &updated); err != nil {
		return doc, coreerrors.Wrap(coreerrors.KindIO, "scan document", err)
	}
	if err := populateDocument(&doc, vecJSON, metaJSON, created, updated); err != nil {
		return doc, err
	}
	return doc, nil
}

// populateDocument deserializes the vector/metadata JSON columns already
// scanned from a row into doc. Shared by every search path (dense, BM25,
// scroll) so deserialization logic lives in exactly one place.
func populateDocument(doc *vectorindex.Document, vecJSON, metaJSON []byte, created, updated int64) error {
	if err := json.Unmarshal(vecJSON, &doc.Vector); err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "unmarshal vector", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
			return coreerrors.Wrap(coreerrors.KindInternal, "unmarshal metadata", err)
		}
	}
	doc.CreatedAt = time.Unix(created, 0)
	doc.UpdatedAt = time.Unix(updated, 0)
	return nil
}

// Close releases the underlying database handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}
