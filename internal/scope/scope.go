// Package scope resolves what a caller may search: canonicalizing
// project/dataset pairs into backend collection names, and expanding a
// requested scope into the full set of datasets a caller can access
// (own, shared-in, and global).
package scope

import (
	"context"
	"regexp"
	"strings"

	"github.com/ferg-cod3s/contextcore/internal/metastore"
)

const maxCollectionNameLen = 63

var nonCanonical = regexp.MustCompile(`[^a-z0-9_]+`)
var repeatedUnderscore = regexp.MustCompile(`_+`)

// CanonicalCollectionName derives the backend collection identifier for a
// project/dataset pair: lower-case, replace anything outside [a-z0-9_]
// with underscore, collapse repeats, then truncate to the backend's
// identifier limit.
func CanonicalCollectionName(project, dataset string) string {
	return normalize("project_" + project + "_dataset_" + dataset)
}

// normalize applies the backend identifier rules in isolation: lower-case,
// collapse anything outside [a-z0-9_] to a single underscore, trim, and
// truncate. It is idempotent — normalize(normalize(s)) == normalize(s) —
// because every character it can produce is already in its own fixed point.
func normalize(s string) string {
	raw := strings.ToLower(s)
	raw = nonCanonical.ReplaceAllString(raw, "_")
	raw = repeatedUnderscore.ReplaceAllString(raw, "_")
	raw = strings.Trim(raw, "_")
	if len(raw) > maxCollectionNameLen {
		raw = raw[:maxCollectionNameLen]
		raw = strings.TrimRight(raw, "_")
	}
	if raw == "" {
		raw = "default"
	}
	return raw
}

// AccessibleDataset is one dataset a caller may search, annotated with how
// they got access to it.
type AccessibleDataset struct {
	Dataset    *metastore.Dataset
	Permission metastore.Permission
	ViaShare   bool
}

// Resolver resolves the accessible dataset set for a caller.
type Resolver struct {
	store *metastore.Store
}

// NewResolver constructs a Resolver over a metadata store.
func NewResolver(store *metastore.Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveAccessible returns every dataset callerID may search: datasets
// owned by ownerProjectID, datasets shared to callerID (non-transitively —
// see DESIGN.md Open Question 3), and, if includeGlobal, every dataset
// marked global.
func (r *Resolver) ResolveAccessible(ctx context.Context, ownerProjectID, callerID string, includeGlobal bool) ([]AccessibleDataset, error) {
	seen := map[string]bool{}
	var out []AccessibleDataset

	owned, err := r.store.ListDatasetsByProject(ctx, ownerProjectID)
	if err != nil {
		return nil, err
	}
	for _, d := range owned {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, AccessibleDataset{Dataset: d, Permission: metastore.PermissionOwner})
	}

	shares, err := r.store.ListSharesForGrantee(ctx, callerID)
	if err != nil {
		return nil, err
	}
	for _, sh := range shares {
		if seen[sh.DatasetID] {
			continue
		}
		d, err := r.store.GetDataset(ctx, sh.DatasetID)
		if err != nil {
			continue // dataset deleted out from under a stale share
		}
		seen[d.ID] = true
		out = append(out, AccessibleDataset{Dataset: d, Permission: sh.Permission, ViaShare: true})
	}

	if includeGlobal {
		globals, err := r.store.ListGlobalDatasets(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range globals {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, AccessibleDataset{Dataset: d, Permission: metastore.PermissionRead})
		}
	}

	return out, nil
}
