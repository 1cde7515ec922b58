package store

import (
	"fmt"
	"strings"

	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
)

// quoteIdent double-quotes an identifier for the SQL targets. Identifiers are
// already sanitized by the inferencer; quoting guards the remaining corner
// cases uniformly.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// placeholderStyle controls parameter markers: lib/pq wants $1..$n, sqlite and
// duckdb take ?.
type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota
	placeholderDollar
)

func placeholders(style placeholderStyle, n int) string {
	marks := make([]string, n)
	for i := range marks {
		if style == placeholderDollar {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	return strings.Join(marks, ", ")
}

func columnList(schema ingest.Schema) string {
	names := make([]string, len(schema))
	for i, col := range schema {
		names[i] = quoteIdent(col.StoreIdentifier)
	}
	return strings.Join(names, ", ")
}

// buildInsertSQL renders a parameterized single-row INSERT for the schema.
// Values are always bound as parameters, never interpolated.
func buildInsertSQL(table string, schema ingest.Schema, style placeholderStyle) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), columnList(schema), placeholders(style, len(schema)))
}

// rowArgs extracts a row's values in schema order for statement binding.
func rowArgs(schema ingest.Schema, row ingest.Row) []interface{} {
	args := make([]interface{}, len(schema))
	for i, col := range schema {
		args[i] = row[col.Name]
	}
	return args
}

// verifySchemaColumns checks that every inferred identifier exists in the
// actual container columns. Extra container columns (e.g. the surrogate id)
// are tolerated.
func verifySchemaColumns(schema ingest.Schema, existing map[string]struct{}) error {
	for _, col := range schema {
		if _, ok := existing[strings.ToLower(col.StoreIdentifier)]; !ok {
			return fmt.Errorf("%w: column %q missing from existing container", ErrSchemaConflict, col.StoreIdentifier)
		}
	}
	return nil
}
