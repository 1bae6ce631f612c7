// Package metastore persists the project/dataset/collection/job/share
// entities of the data model in SQLite, following the teacher's
// transactional-store idiom (internal/connectors/store.go,
// internal/vectorstore/sqlite/store.go) generalized to the spec's richer
// schema.
package metastore

import "time"

// Project is the top-level scoping entity a dataset belongs to.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dataset groups ingested content under one collection binding.
type Dataset struct {
	ID        string
	ProjectID string
	Name      string
	Global    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CollectionBinding maps a dataset to its backing vector-index collection.
type CollectionBinding struct {
	DatasetID      string
	CollectionName string
	Dimensions     int
	Backend        string // "dense" or "hybrid"
	CreatedAt      time.Time
}

// WebPage records a crawled page's provenance.
type WebPage struct {
	ID        string
	DatasetID string
	URL       string
	Title     string
	FetchedAt time.Time
	Hash      string
}

// JobStatus is the lifecycle state of an IngestionJob.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IngestionJob tracks one ingestion run.
type IngestionJob struct {
	ID             string
	ProjectID      string
	DatasetID      string
	SourceKind     string
	Status         JobStatus
	Phase          string
	Progress       float64
	FilesProcessed int
	TotalFiles     int
	ChunksCreated  int
	LastError      string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// WatcherState persists a running watcher's registration so it survives
// process restart.
type WatcherState struct {
	ID        string
	ProjectID string
	DatasetID string
	RootPath  string
	Active    bool
	CreatedAt time.Time
}

// Permission is the access level a Share grants.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionOwner Permission = "owner"
)

// Share grants a user access to a dataset owned by another project.
type Share struct {
	ID         string
	DatasetID  string
	GranteeID  string
	Permission Permission
	CreatedAt  time.Time
}
