package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

// SearchBM25 performs keyword search over a hybrid collection's FTS5 shadow
// table. Query parsing/escaping is ported unchanged from the teacher's
// internal/vectorstore/sqlite/fts5.go.
func (g *Gateway) SearchBM25(ctx context.Context, collection, query string, opts vectorindex.SearchOptions) ([]vectorindex.SearchResult, error) {
	if query == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "search query cannot be empty")
	}
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}
	st, err := g.stateFor(collection)
	if err != nil {
		return nil, err
	}
	if !st.hybrid {
		return nil, coreerrors.New(coreerrors.KindValidation, "collection has no keyword index").WithResource(collection)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	fts5Query := parseFTS5Query(query)
	filterClause, filterArgs := compileFilter(opts.Filter)

	sqlQuery := fmt.Sprintf(`
		SELECT d.id, d.content, d.vector, d.metadata, d.created_at, d.updated_at, fts.rank as score
		FROM %s_fts fts
		JOIN %s d ON fts.id = d.id
		WHERE fts.content MATCH ?`, table, table)
	args := []interface{}{fts5Query}
	if filterClause != "" {
		sqlQuery += " AND " + filterClause
		args = append(args, filterArgs...)
	}
	sqlQuery += " ORDER BY fts.rank ASC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := g.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "execute bm25 search", err)
	}
	defer rows.Close()

	var results []vectorindex.SearchResult
	for rows.Next() {
		var doc vectorindex.Document
		var vecJSON, metaJSON []byte
		var created, updated int64
		var score float32
		if err := rows.Scan(&doc.ID, &doc.Content, &vecJSON, &metaJSON, &created, &updated, &score); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIO, "scan bm25 result", err)
		}
		if err := populateDocument(&doc, vecJSON, metaJSON, created, updated); err != nil {
			return nil, err
		}
		normalized := normalizeRank(score)
		if opts.Threshold > 0 && normalized < opts.Threshold {
			continue
		}
		results = append(results, vectorindex.SearchResult{Document: doc, Score: normalized, Method: "bm25"})
	}
	return results, rows.Err()
}

func parseFTS5Query(query string) string {
	query = strings.TrimSpace(query)
	phrases := extractPhrases(query)
	for i, phrase := range phrases {
		placeholder := fmt.Sprintf("__PHRASE_%d__", i)
		query = strings.Replace(query, fmt.Sprintf(`"%s"`, phrase), placeholder, 1)
	}
	query = escapeFTS5Special(query)
	for i, phrase := range phrases {
		placeholder := fmt.Sprintf("__PHRASE_%d__", i)
		escaped := escapeFTS5Special(phrase)
		query = strings.Replace(query, placeholder, fmt.Sprintf(`"%s"`, escaped), 1)
	}
	query = normalizeOperators(query)
	if !containsExplicitOperators(query) {
		words := splitPreservingQuotes(query)
		query = strings.Join(words, " AND ")
	}
	return query
}

func extractPhrases(query string) []string {
	re := regexp.MustCompile(`"([^"]+)"`)
	matches := re.FindAllStringSubmatch(query, -1)
	phrases := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			phrases = append(phrases, m[1])
		}
	}
	return phrases
}

func escapeFTS5Special(s string) string {
	replacer := strings.NewReplacer(
		`"`, `""`,
		`/`, " ",
		`(`, " ",
		`)`, " ",
		`-`, " ",
	)
	return replacer.Replace(s)
}

func normalizeOperators(query string) string {
	re := regexp.MustCompile(`\b(and|or|not)\b`)
	return re.ReplaceAllStringFunc(query, strings.ToUpper)
}

func containsExplicitOperators(query string) bool {
	return strings.Contains(query, " AND ") || strings.Contains(query, " OR ") || strings.Contains(query, " NOT ")
}

func splitPreservingQuotes(query string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	for _, r := range query {
		switch r {
		case '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case ' ':
			if inQuotes {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				tokens = append(tokens, strings.TrimSpace(current.String()))
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, strings.TrimSpace(current.String()))
	}
	return tokens
}

// normalizeRank converts FTS5's negative rank into a [0,1] score.
func normalizeRank(rank float32) float32 {
	score := -rank
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score / 10.0
}
