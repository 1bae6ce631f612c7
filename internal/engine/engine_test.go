package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferg-cod3s/contextcore/internal/chunking"
	"github.com/ferg-cod3s/contextcore/internal/embedding"
	"github.com/ferg-cod3s/contextcore/internal/metastore"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()

	e, err := New(Config{
		MetastorePath: ":memory:",
		VectorDBPath:  filepath.Join(dir, "vectors.db"),
		SnapshotDir:   filepath.Join(dir, "snapshots"),
		ChunkConfig:   chunking.Config{MaxChunkSize: 200, OverlapSize: 20},
		TextEmbedder:  embedding.NewMock(8),
		CodeEmbedder:  embedding.NewMock(8),
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestEngine_New_OpensStoresAndClose(t *testing.T) {
	e := newTestEngine(t)
	assert.NotNil(t, e.store)
	assert.NotNil(t, e.index)
}

func TestEngine_Defaults(t *testing.T) {
	e := newTestEngine(t)

	p, d := e.GetDefaults()
	assert.Empty(t, p)
	assert.Empty(t, d)

	e.SetDefaults("acme", "docs")
	p, d = e.GetDefaults()
	assert.Equal(t, "acme", p)
	assert.Equal(t, "docs", d)
}

func TestEngine_EnsureScope_CreatesProjectDatasetAndBinding(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	ds, collection, err := e.ensureScope(ctx, "acme", "docs")
	require.NoError(t, err)
	assert.Equal(t, "acme/docs", ds.ID)
	assert.NotEmpty(t, collection)

	// calling it again must not fail or rebind to a different collection.
	ds2, collection2, err := e.ensureScope(ctx, "acme", "docs")
	require.NoError(t, err)
	assert.Equal(t, ds.ID, ds2.ID)
	assert.Equal(t, collection, collection2)
}

func TestEngine_EnsureScope_RequiresProjectAndDataset(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := e.ensureScope(context.Background(), "", "docs")
	require.Error(t, err)
}

func TestEngine_IndexLocalThenQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	root := t.TempDir()
	writeTestFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hello world\")\n}\n")
	writeTestFile(t, root, "README.md", "# Demo\n\nThis project says hello world.\n")

	jobID, err := e.IndexLocal(ctx, IndexLocalRequest{Path: root, Project: "acme", Dataset: "docs"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitJobFinished(t, e, jobID)
	assert.Equal(t, metastore.JobStatusCompleted, job.Status)
	assert.Greater(t, job.ChunksCreated, 0)

	resp, err := e.Query(ctx, QueryRequest{Query: "hello world", Project: "acme", Dataset: "docs", TopK: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Hits)
}

func TestEngine_Stats_ListScopes_Status(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	root := t.TempDir()
	writeTestFile(t, root, "a.go", "package a")

	jobID, err := e.IndexLocal(ctx, IndexLocalRequest{Path: root, Project: "acme", Dataset: "docs"})
	require.NoError(t, err)
	waitJobFinished(t, e, jobID)

	scopes, err := e.ListScopes(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, scopes, 1)

	stats, err := e.Stats(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Greater(t, stats[0].DocumentCount, 0)

	status, err := e.GetStatus(ctx, "acme", "docs")
	require.NoError(t, err)
	assert.True(t, status.Indexed)

	missing, err := e.GetStatus(ctx, "acme", "other")
	require.NoError(t, err)
	assert.False(t, missing.Indexed)
}

func TestEngine_Clear_DryRunThenReal(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	root := t.TempDir()
	writeTestFile(t, root, "a.go", "package a")
	jobID, err := e.IndexLocal(ctx, IndexLocalRequest{Path: root, Project: "acme", Dataset: "docs"})
	require.NoError(t, err)
	waitJobFinished(t, e, jobID)

	dry, err := e.Clear(ctx, "acme", "docs", true)
	require.NoError(t, err)
	assert.Equal(t, 0, dry.CollectionsDeleted)
	assert.Len(t, dry.Collections, 1)

	real, err := e.Clear(ctx, "acme", "docs", false)
	require.NoError(t, err)
	assert.Equal(t, 1, real.CollectionsDeleted)

	status, err := e.GetStatus(ctx, "acme", "docs")
	require.NoError(t, err)
	assert.False(t, status.Indexed)
}

func TestEngine_History(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	root := t.TempDir()
	writeTestFile(t, root, "a.go", "package a")
	jobID, err := e.IndexLocal(ctx, IndexLocalRequest{Path: root, Project: "acme", Dataset: "docs"})
	require.NoError(t, err)
	waitJobFinished(t, e, jobID)

	jobs, err := e.History(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)
}

func TestEngine_JobGetAndCancel(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	root := t.TempDir()
	writeTestFile(t, root, "a.go", "package a")
	jobID, err := e.IndexLocal(ctx, IndexLocalRequest{Path: root, Project: "acme", Dataset: "docs"})
	require.NoError(t, err)
	waitJobFinished(t, e, jobID)

	job, err := e.JobGet(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)

	err = e.JobCancel("does-not-exist")
	require.Error(t, err)
}

func TestEngine_WatchLocalAndStop(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	root := t.TempDir()

	id, err := e.WatchLocal(ctx, root, "acme", "docs", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	list, err := e.WatchersList(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, e.StopWatching(ctx, root))

	list, err = e.WatchersList(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func waitJobFinished(t *testing.T, e *Engine, jobID string) *metastore.IngestionJob {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		job, err := e.JobGet(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s did not reach a terminal state in time", jobID)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
