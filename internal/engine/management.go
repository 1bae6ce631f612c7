package engine

import (
	"context"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/metastore"
)

// ScopeStats summarizes one dataset's indexed content, per spec.md §6's
// stats operation.
type ScopeStats struct {
	Dataset        *metastore.Dataset
	CollectionName string
	Backend        string
	DocumentCount  int
}

// Stats reports indexed-content counts for every dataset in project, or
// for every dataset the caller can see when project is empty.
func (e *Engine) Stats(ctx context.Context, project string) ([]ScopeStats, error) {
	project = e.resolveProject(project)

	datasets, err := e.listDatasets(ctx, project)
	if err != nil {
		return nil, err
	}

	out := make([]ScopeStats, 0, len(datasets))
	for _, ds := range datasets {
		binding, err := e.store.GetCollectionBinding(ctx, ds.ID)
		if err != nil {
			if coreerrors.Is(err, coreerrors.KindNotFound) {
				out = append(out, ScopeStats{Dataset: ds})
				continue
			}
			return nil, err
		}

		count, err := e.countDocuments(ctx, binding.CollectionName)
		if err != nil {
			return nil, err
		}

		out = append(out, ScopeStats{
			Dataset:        ds,
			CollectionName: binding.CollectionName,
			Backend:        binding.Backend,
			DocumentCount:  count,
		})
	}
	return out, nil
}

// countDocuments walks a collection's full cursor to size it, since
// vectorindex.Gateway exposes no direct count — acceptable here since
// Stats is an occasional operator call, not a hot path.
func (e *Engine) countDocuments(ctx context.Context, collection string) (int, error) {
	const pageSize = 500
	var total int
	cursor := ""
	for {
		docs, next, err := e.index.Scroll(ctx, collection, cursor, pageSize)
		if err != nil {
			return 0, err
		}
		total += len(docs)
		if next == "" {
			break
		}
		cursor = next
	}
	return total, nil
}

func (e *Engine) listDatasets(ctx context.Context, project string) ([]*metastore.Dataset, error) {
	if project == "" {
		return e.store.ListGlobalDatasets(ctx)
	}
	return e.store.ListDatasetsByProject(ctx, project)
}

// ListScopes returns every dataset registered under project, per spec.md
// §6's listScopes operation.
func (e *Engine) ListScopes(ctx context.Context, project string) ([]*metastore.Dataset, error) {
	return e.listDatasets(ctx, e.resolveProject(project))
}

// History returns a project's recent ingestion jobs, most recent first,
// per spec.md §6's history operation.
func (e *Engine) History(ctx context.Context, project string, limit int) ([]*metastore.IngestionJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.store.ListJobsByProject(ctx, e.resolveProject(project), limit)
}

// ClearResult reports what Clear removed.
type ClearResult struct {
	CollectionsDeleted int
	Collections        []string
}

// Clear drops the backing collection for dataset (or every dataset in
// project, when dataset is empty), per spec.md §6's clear operation.
// With dryRun set, reports what would be deleted without deleting it.
func (e *Engine) Clear(ctx context.Context, project, dataset string, dryRun bool) (*ClearResult, error) {
	project = e.resolveProject(project)

	var datasets []*metastore.Dataset
	if dataset != "" {
		ds, err := e.store.GetDataset(ctx, project+"/"+dataset)
		if err != nil {
			return nil, err
		}
		datasets = []*metastore.Dataset{ds}
	} else {
		ds, err := e.listDatasets(ctx, project)
		if err != nil {
			return nil, err
		}
		datasets = ds
	}

	result := &ClearResult{}
	for _, ds := range datasets {
		binding, err := e.store.GetCollectionBinding(ctx, ds.ID)
		if err != nil {
			if coreerrors.Is(err, coreerrors.KindNotFound) {
				continue
			}
			return nil, err
		}

		result.Collections = append(result.Collections, binding.CollectionName)
		if dryRun {
			continue
		}
		if err := e.index.DropCollection(ctx, binding.CollectionName); err != nil {
			return nil, err
		}
		result.CollectionsDeleted++
	}
	return result, nil
}

// Status reports whether project/dataset has a reachable collection
// binding, per spec.md §6's status operation — a lightweight health check
// distinct from the fuller Stats.
type Status struct {
	Project        string
	Dataset        string
	CollectionName string
	Indexed        bool
}

// GetStatus reports whether project/dataset has anything indexed yet.
func (e *Engine) GetStatus(ctx context.Context, project, dataset string) (*Status, error) {
	project = e.resolveProject(project)
	dataset = e.resolveDataset(dataset)
	if project == "" || dataset == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "project and dataset are required")
	}

	datasetID := project + "/" + dataset
	binding, err := e.store.GetCollectionBinding(ctx, datasetID)
	if err != nil {
		if coreerrors.Is(err, coreerrors.KindNotFound) {
			return &Status{Project: project, Dataset: dataset}, nil
		}
		return nil, err
	}

	has, err := e.index.HasCollection(ctx, binding.CollectionName)
	if err != nil {
		return nil, err
	}
	return &Status{Project: project, Dataset: dataset, CollectionName: binding.CollectionName, Indexed: has}, nil
}
