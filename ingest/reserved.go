package ingest

import "strings"

// Dialect selects the reserved-word set used when generating store
// identifiers. Schema-less targets use DialectNone and keep raw header names.
type Dialect int

const (
	DialectNone Dialect = iota
	DialectPostgres
	DialectSQLite
	DialectDuckDB
)

// Reserved words shared by the SQL dialects we target. Checked once at
// identifier-generation time; query construction never has to re-check.
var sqlReservedWords = []string{
	"abort", "action", "add", "after", "all", "alter", "analyze", "and", "as", "asc",
	"attach", "autoincrement", "before", "begin", "between", "by", "cascade", "case",
	"cast", "check", "collate", "column", "commit", "conflict", "constraint", "create",
	"cross", "current_date", "current_time", "current_timestamp", "database", "default",
	"deferrable", "deferred", "delete", "desc", "detach", "distinct", "drop", "each",
	"else", "end", "escape", "except", "exclusive", "exists", "explain", "fail", "for",
	"foreign", "from", "full", "glob", "group", "having", "if", "ignore", "immediate",
	"in", "index", "indexed", "initially", "inner", "insert", "instead", "intersect",
	"into", "is", "isnull", "join", "key", "left", "like", "limit", "match", "natural",
	"no", "not", "notnull", "null", "of", "offset", "on", "or", "order", "outer", "plan",
	"pragma", "primary", "query", "raise", "recursive", "references", "regexp", "reindex",
	"release", "rename", "replace", "restrict", "right", "rollback", "row", "savepoint",
	"select", "set", "table", "temp", "temporary", "then", "to", "transaction", "trigger",
	"union", "unique", "update", "user", "using", "vacuum", "values", "view", "virtual",
	"when", "where", "with", "without",
}

var reservedByDialect = map[Dialect]map[string]struct{}{
	DialectPostgres: buildReservedSet(),
	DialectSQLite:   buildReservedSet(),
	DialectDuckDB:   buildReservedSet(),
}

func buildReservedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(sqlReservedWords))
	for _, w := range sqlReservedWords {
		set[w] = struct{}{}
	}
	return set
}

// isReserved reports whether name collides with a reserved keyword of the
// dialect's query language.
func isReserved(dialect Dialect, name string) bool {
	set, ok := reservedByDialect[dialect]
	if !ok {
		return false
	}
	_, hit := set[strings.ToLower(name)]
	return hit
}
