package metastore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	t.Run("in-memory store opens and is usable", func(t *testing.T) {
		s := newStore(t)
		assert.NotNil(t, s)
	})
}

func TestStore_Project(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		p := &Project{ID: uuid.NewString(), Name: "acme"}
		require.NoError(t, s.CreateProject(ctx, p))

		got, err := s.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Name, got.Name)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("create is idempotent on conflict", func(t *testing.T) {
		s := newStore(t)
		id := uuid.NewString()
		require.NoError(t, s.CreateProject(ctx, &Project{ID: id, Name: "first"}))
		require.NoError(t, s.CreateProject(ctx, &Project{ID: id, Name: "renamed"}))

		got, err := s.GetProject(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
	})

	t.Run("get non-existent returns NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetProject(ctx, uuid.NewString())
		require.Error(t, err)
		var ce *coreerrors.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, coreerrors.KindNotFound, ce.Kind)
	})
}

func TestStore_Dataset(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		proj := &Project{ID: uuid.NewString(), Name: "acme"}
		require.NoError(t, s.CreateProject(ctx, proj))

		d := &Dataset{ID: uuid.NewString(), ProjectID: proj.ID, Name: "docs"}
		require.NoError(t, s.CreateDataset(ctx, d))

		got, err := s.GetDataset(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "docs", got.Name)
		assert.False(t, got.Global)
	})

	t.Run("list by project excludes other projects", func(t *testing.T) {
		s := newStore(t)
		projA := &Project{ID: uuid.NewString(), Name: "a"}
		projB := &Project{ID: uuid.NewString(), Name: "b"}
		require.NoError(t, s.CreateProject(ctx, projA))
		require.NoError(t, s.CreateProject(ctx, projB))

		require.NoError(t, s.CreateDataset(ctx, &Dataset{ID: uuid.NewString(), ProjectID: projA.ID, Name: "one"}))
		require.NoError(t, s.CreateDataset(ctx, &Dataset{ID: uuid.NewString(), ProjectID: projA.ID, Name: "two"}))
		require.NoError(t, s.CreateDataset(ctx, &Dataset{ID: uuid.NewString(), ProjectID: projB.ID, Name: "other"}))

		list, err := s.ListDatasetsByProject(ctx, projA.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("global datasets are listed regardless of project", func(t *testing.T) {
		s := newStore(t)
		proj := &Project{ID: uuid.NewString(), Name: "acme"}
		require.NoError(t, s.CreateProject(ctx, proj))

		require.NoError(t, s.CreateDataset(ctx, &Dataset{ID: uuid.NewString(), ProjectID: proj.ID, Name: "local"}))
		require.NoError(t, s.CreateDataset(ctx, &Dataset{ID: uuid.NewString(), ProjectID: proj.ID, Name: "shared", Global: true}))

		globals, err := s.ListGlobalDatasets(ctx)
		require.NoError(t, err)
		require.Len(t, globals, 1)
		assert.Equal(t, "shared", globals[0].Name)
	})
}

func TestStore_CollectionBinding(t *testing.T) {
	ctx := context.Background()

	t.Run("bind and get", func(t *testing.T) {
		s := newStore(t)
		proj := &Project{ID: uuid.NewString(), Name: "acme"}
		require.NoError(t, s.CreateProject(ctx, proj))
		d := &Dataset{ID: uuid.NewString(), ProjectID: proj.ID, Name: "docs"}
		require.NoError(t, s.CreateDataset(ctx, d))

		b := &CollectionBinding{DatasetID: d.ID, CollectionName: "project_acme_dataset_docs", Dimensions: 768}
		require.NoError(t, s.BindCollection(ctx, b))

		got, err := s.GetCollectionBinding(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "project_acme_dataset_docs", got.CollectionName)
		assert.Equal(t, "dense", got.Backend, "default backend defaults to dense when unset")
	})

	t.Run("rebind updates in place", func(t *testing.T) {
		s := newStore(t)
		proj := &Project{ID: uuid.NewString(), Name: "acme"}
		require.NoError(t, s.CreateProject(ctx, proj))
		d := &Dataset{ID: uuid.NewString(), ProjectID: proj.ID, Name: "docs"}
		require.NoError(t, s.CreateDataset(ctx, d))

		require.NoError(t, s.BindCollection(ctx, &CollectionBinding{DatasetID: d.ID, CollectionName: "v1", Dimensions: 384}))
		require.NoError(t, s.BindCollection(ctx, &CollectionBinding{DatasetID: d.ID, CollectionName: "v2", Dimensions: 768, Backend: "hybrid"}))

		got, err := s.GetCollectionBinding(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.CollectionName)
		assert.Equal(t, "hybrid", got.Backend)
	})

	t.Run("get missing binding returns NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetCollectionBinding(ctx, uuid.NewString())
		require.Error(t, err)
		var ce *coreerrors.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, coreerrors.KindNotFound, ce.Kind)
	})
}

func TestStore_Shares(t *testing.T) {
	ctx := context.Background()

	t.Run("create, list, revoke", func(t *testing.T) {
		s := newStore(t)
		proj := &Project{ID: uuid.NewString(), Name: "acme"}
		require.NoError(t, s.CreateProject(ctx, proj))
		d := &Dataset{ID: uuid.NewString(), ProjectID: proj.ID, Name: "docs"}
		require.NoError(t, s.CreateDataset(ctx, d))

		grantee := uuid.NewString()
		share := &Share{ID: uuid.NewString(), DatasetID: d.ID, GranteeID: grantee, Permission: PermissionRead}
		require.NoError(t, s.CreateShare(ctx, share))

		list, err := s.ListSharesForGrantee(ctx, grantee)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, PermissionRead, list[0].Permission)

		require.NoError(t, s.RevokeShare(ctx, share.ID))

		list, err = s.ListSharesForGrantee(ctx, grantee)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("revoke unknown share is NotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.RevokeShare(ctx, uuid.NewString())
		require.Error(t, err)
		var ce *coreerrors.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, coreerrors.KindNotFound, ce.Kind)
	})
}
