package ingest

import (
	"strconv"
	"strings"
	"time"
)

// ColumnType is the semantic type inferred for a CSV column.
type ColumnType int

const (
	TypeUnknown ColumnType = iota
	TypeText
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeDate
)

func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column describes one CSV column: the raw header name, the inferred type and
// the identifier that is safe to use in the target store. A Column is created
// once during inference and not modified afterwards.
type Column struct {
	Name            string
	Type            ColumnType
	StoreIdentifier string
}

// Schema is an ordered list of columns, one per CSV header entry, in header
// order. Store identifiers are unique within a schema.
type Schema []Column

// Column returns the descriptor for the given raw header name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FindColumn returns the first column whose raw name contains all of the given
// keywords (case-insensitive). Used by adapters to locate the email-like,
// URL-like or subscription-date column without hardcoding header names.
func (s Schema) FindColumn(keywords ...string) (Column, bool) {
	for _, c := range s {
		name := strings.ToLower(c.Name)
		match := true
		for _, kw := range keywords {
			if !strings.Contains(name, kw) {
				match = false
				break
			}
		}
		if match {
			return c, true
		}
	}
	return Column{}, false
}

// RawRow is one CSV record, fields positionally aligned with the header.
type RawRow []string

// Row maps raw column names to coerced values. Rows only exist in flight
// between the reader and a store adapter.
type Row map[string]interface{}

// Batch is a bounded group of rows written to a store as one atomic unit.
type Batch []Row

// DefaultBatchSize matches the commit interval the loaders use between
// transactions. Hundreds to low thousands balances memory against per-write
// overhead.
const DefaultBatchSize = 1000

// dateFormats are tried in order when parsing date-like values.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// ParseDate parses a date-like string using the supported formats.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y":
		return true, true
	case "false", "f", "no", "n":
		return false, true
	}
	return false, false
}

// CoerceRow converts the raw string fields of a record into typed values
// according to the schema. Fields that fail to parse under the inferred type
// become nil (NULL in SQL stores, absent-value in the document store) so a
// handful of dirty values never aborts a load. The raw row must already be
// aligned with the header.
func CoerceRow(schema Schema, raw RawRow) Row {
	row := make(Row, len(schema))
	for i, col := range schema {
		if i >= len(raw) {
			break
		}
		row[col.Name] = coerceValue(col.Type, raw[i])
	}
	return row
}

func coerceValue(t ColumnType, field string) interface{} {
	if field == "" {
		return nil
	}
	switch t {
	case TypeInteger:
		if v, err := strconv.ParseInt(field, 10, 64); err == nil {
			return v
		}
	case TypeFloat:
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			return v
		}
	case TypeBoolean:
		if v, ok := parseBool(field); ok {
			return v
		}
	case TypeDate:
		if v, ok := ParseDate(field); ok {
			return v.UTC()
		}
	default:
		return field
	}
	return nil
}
