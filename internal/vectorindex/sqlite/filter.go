package sqlite

import (
	"fmt"
	"strings"

	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

// compileFilter turns a FilterDescriptor into a SQL WHERE fragment (without
// the leading WHERE/AND) plus its bind args, over the JSON metadata column.
// Grounded on the teacher's json_extract filter pattern in
// internal/vectorstore/sqlite/{vector,fts5}.go, extended with the dataset
// scoping the spec's REDESIGN FLAG requires.
func compileFilter(f vectorindex.FilterDescriptor) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.ProjectID != "" {
		clauses = append(clauses, "json_extract(metadata, '$.project_id') = ?")
		args = append(args, f.ProjectID)
	}
	if len(f.DatasetIDs) > 0 {
		placeholders := make([]string, len(f.DatasetIDs))
		for i, id := range f.DatasetIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, fmt.Sprintf("json_extract(metadata, '$.dataset_id') IN (%s)", strings.Join(placeholders, ",")))
	}
	if f.Repo != "" {
		clauses = append(clauses, "json_extract(metadata, '$.repo') = ?")
		args = append(args, f.Repo)
	}
	if f.Lang != "" {
		clauses = append(clauses, "json_extract(metadata, '$.language') = ?")
		args = append(args, f.Lang)
	}
	if f.PathPrefix != "" {
		clauses = append(clauses, "json_extract(metadata, '$.file_path') LIKE ?")
		args = append(args, f.PathPrefix+"%")
	}

	return strings.Join(clauses, " AND "), args
}
