// Package vectorindex generalizes the teacher's single-collection
// vectorstore (internal/vectorstore) into a multi-collection gateway: one
// physical SQLite database holding one documents_<collection> table pair
// per dataset's backing collection, addressed by the name
// internal/scope.CanonicalCollectionName produces.
package vectorindex

import (
	"context"
	"time"

	"github.com/ferg-cod3s/contextcore/internal/embedding"
)

// Document is a stored chunk with its dense (and optionally sparse)
// embedding, scoped to one collection.
type Document struct {
	ID        string
	Content   string
	Vector    embedding.Vector
	Sparse    *embedding.SparseVector
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult is a single ranked match.
type SearchResult struct {
	Document Document
	Score    float32
	Method   string // "bm25", "vector", "hybrid"
}

// FilterDescriptor narrows a search to the datasets and path/language facets
// a caller is allowed (or asking) to see. Compiled to a SQL WHERE clause
// over the JSON metadata column via json_extract.
type FilterDescriptor struct {
	ProjectID  string
	DatasetIDs []string
	Repo       string
	Lang       string
	PathPrefix string
}

// SearchOptions configures a search call.
type SearchOptions struct {
	Limit     int
	Offset    int
	Threshold float32
	Filter    FilterDescriptor
	Rerank    bool
}

// Gateway is the multi-collection vector index contract every caller in
// internal/query and internal/ingest programs against; internal/vectorindex/sqlite
// is its only implementation.
type Gateway interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dimensions int) error
	CreateHybridCollection(ctx context.Context, name string, dimensions int) error
	DropCollection(ctx context.Context, name string) error

	Upsert(ctx context.Context, collection string, doc Document) error
	UpsertBatch(ctx context.Context, collection string, docs []Document) error
	Delete(ctx context.Context, collection, id string) error

	Search(ctx context.Context, collection string, vector embedding.Vector, opts SearchOptions) ([]SearchResult, error)
	SearchBM25(ctx context.Context, collection, query string, opts SearchOptions) ([]SearchResult, error)
	HybridSearch(ctx context.Context, collection, query string, vector embedding.Vector, opts SearchOptions) ([]SearchResult, error)
	Scroll(ctx context.Context, collection string, cursor string, limit int) ([]Document, string, error)

	Close() error
}
