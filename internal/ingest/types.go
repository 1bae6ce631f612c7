// Package ingest runs the phase-driven ingestion pipeline — walk, hash-diff,
// chunk, embed, index — generalizing the teacher's internal/indexer
// controller/indexer pair (internal/indexer/controller.go,
// internal/indexer/indexer_impl.go) into a source-agnostic orchestrator that
// writes into internal/vectorindex instead of a single global
// internal/vectorstore.
package ingest

import (
	"context"
	"time"

	"github.com/ferg-cod3s/contextcore/internal/chunking"
)

// SourceKind names where a job's content originates.
type SourceKind string

const (
	SourceKindLocal SourceKind = "local"
	SourceKindGit   SourceKind = "git"
	SourceKindCrawl SourceKind = "crawl"
)

// Phase names the ingestion pipeline stage currently running, reported
// through ProgressFunc so callers can render a status line.
type Phase string

const (
	PhaseDiscovering Phase = "discovering"
	PhaseDiffing     Phase = "diffing"
	PhaseChunking    Phase = "chunking"
	PhaseEmbedding   Phase = "embedding"
	PhaseIndexing    Phase = "indexing"
	PhaseDone        Phase = "done"
)

// Progress is one snapshot of pipeline state, mirroring the teacher's
// IndexStatus shape (internal/indexer/indexer.go).
type Progress struct {
	Phase          Phase
	FilesProcessed int
	TotalFiles     int
	ChunksCreated  int
	LastError      string
}

// ProgressFunc receives a Progress snapshot after each unit of work.
type ProgressFunc func(Progress)

// Options configures one ingestion run.
type Options struct {
	ProjectID      string
	DatasetID      string
	CollectionName string
	RootPath       string
	IgnorePatterns []string
	ChunkConfig    chunking.Config
	OnProgress     ProgressFunc
}

// Source produces a flat map of path -> content for one ingestion run. Local
// filesystem, git-clone, and web-crawl sources all satisfy this.
type Source interface {
	Discover(ctx context.Context, opts Options) (map[string][]byte, error)
}

// PageProducer is satisfied by an external crawler feeding CrawlSource; it
// decouples the ingestion pipeline from any one crawling implementation.
type PageProducer interface {
	Pages(ctx context.Context, seedURL string) (<-chan Page, error)
}

// Page is one fetched document from a PageProducer.
type Page struct {
	URL      string
	Title    string
	Content  []byte
	FetchedAt time.Time
}
