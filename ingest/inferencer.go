package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSampleSize bounds the number of rows the inferencer examines.
const DefaultSampleSize = 512

// agreementThreshold is the fraction of non-empty sampled values that must
// parse under a candidate type before the column adopts it.
const agreementThreshold = 0.9

// InferSchema derives one column descriptor per header entry from a bounded
// sample of raw rows. For each column the most specific type whose parse rate
// meets the agreement threshold wins, with precedence
// Boolean > Integer > Float > Date > Text. Columns with no non-empty sampled
// values come out as Unknown. Inference never fails: unparseable data degrades
// a column to Text.
//
// Store identifiers are produced per the target dialect: lower-cased,
// non-alphanumeric runs collapsed to underscores, a "c_" prefix when the
// result would start with a digit, a "_col" suffix when it collides with a
// reserved keyword, and numeric suffixes to break duplicates. DialectNone
// (schema-less targets) keeps the raw header name.
func InferSchema(header []string, sample []RawRow, dialect Dialect) Schema {
	schema := make(Schema, 0, len(header))
	seen := make(map[string]int, len(header))

	for i, name := range header {
		col := Column{
			Name:            name,
			Type:            inferColumnType(sample, i),
			StoreIdentifier: storeIdentifier(name, dialect, seen),
		}
		schema = append(schema, col)
	}
	return schema
}

type typeTally struct {
	total    int
	integers int
	floats   int
	booleans int
	dates    int
}

func inferColumnType(sample []RawRow, index int) ColumnType {
	var tally typeTally
	for _, row := range sample {
		if index >= len(row) {
			continue
		}
		field := strings.TrimSpace(row[index])
		if field == "" {
			continue
		}
		tally.total++
		if _, ok := parseBool(field); ok {
			tally.booleans++
		}
		if _, err := strconv.ParseInt(field, 10, 64); err == nil {
			tally.integers++
		}
		if _, err := strconv.ParseFloat(field, 64); err == nil {
			tally.floats++
		}
		if _, ok := ParseDate(field); ok {
			tally.dates++
		}
	}

	if tally.total == 0 {
		return TypeUnknown
	}

	threshold := int(float64(tally.total)*agreementThreshold + 0.5)
	if threshold < 1 {
		threshold = 1
	}
	switch {
	case tally.booleans >= threshold:
		return TypeBoolean
	case tally.integers >= threshold:
		return TypeInteger
	case tally.floats >= threshold:
		return TypeFloat
	case tally.dates >= threshold:
		return TypeDate
	default:
		return TypeText
	}
}

func storeIdentifier(name string, dialect Dialect, seen map[string]int) string {
	ident := name
	if dialect != DialectNone {
		ident = sanitizeIdentifier(name)
		if isReserved(dialect, ident) {
			ident += "_col"
		}
	}

	// Post-sanitization collisions get a numeric suffix so identifiers stay
	// unique within the schema.
	key := strings.ToLower(ident)
	seen[key]++
	if n := seen[key]; n > 1 {
		ident = fmt.Sprintf("%s_%d", ident, n)
		seen[strings.ToLower(ident)]++
	}
	return ident
}

func sanitizeIdentifier(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	ident := strings.TrimRight(b.String(), "_")
	if ident == "" {
		ident = "column"
	}
	if ident[0] >= '0' && ident[0] <= '9' {
		ident = "c_" + ident
	}
	return ident
}
