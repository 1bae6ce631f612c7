package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/embedding"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

// Search performs dense vector similarity search over a collection using
// its in-memory HNSW index (the teacher's own hand-rolled
// internal/vectorstore/sqlite/hnsw.go, kept verbatim as the ANN algorithm
// and now instantiated per collection), then fetches and filters the
// candidate documents from SQLite.
func (g *Gateway) Search(ctx context.Context, collection string, queryVector embedding.Vector, opts vectorindex.SearchOptions) ([]vectorindex.SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, coreerrors.New(coreerrors.KindValidation, "query vector cannot be empty")
	}
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}
	st, err := g.stateFor(collection)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	ef := limit * 4
	if ef < 32 {
		ef = 32
	}

	candidates, err := st.hnsw.Search(queryVector, limit+opts.Offset, ef)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "hnsw search", err)
	}
	if len(candidates) == 0 {
		return []vectorindex.SearchResult{}, nil
	}

	docs, err := g.fetchByIDs(ctx, table, candidateIDs(candidates), opts.Filter)
	if err != nil {
		return nil, err
	}

	scoreByID := make(map[string]float32, len(candidates))
	for _, c := range candidates {
		scoreByID[c.ID] = 1.0 - c.Distance
	}

	results := make([]vectorindex.SearchResult, 0, len(docs))
	for _, doc := range docs {
		score, ok := scoreByID[doc.ID]
		if !ok {
			continue
		}
		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}
		results = append(results, vectorindex.SearchResult{Document: doc, Score: score, Method: "vector"})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	start := opts.Offset
	if start > len(results) {
		start = len(results)
	}
	end := start + limit
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], nil
}

func candidateIDs(candidates []SearchCandidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

func (g *Gateway) fetchByIDs(ctx context.Context, table string, ids []string, filter vectorindex.FilterDescriptor) ([]vectorindex.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT id, content, vector, metadata, created_at, updated_at FROM %s WHERE id IN (%s)`,
		table, strings.Join(placeholders, ","))

	filterClause, filterArgs := compileFilter(filter)
	if filterClause != "" {
		query += " AND " + filterClause
		args = append(args, filterArgs...)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "fetch documents by id", err)
	}
	defer rows.Close()

	var docs []vectorindex.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

