package ingest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFromColumn(values ...string) []RawRow {
	rows := make([]RawRow, len(values))
	for i, v := range values {
		rows[i] = RawRow{v}
	}
	return rows
}

func TestInferColumnTypes(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ColumnType
	}{
		{"integers", []string{"1", "42", "-7", "0"}, TypeInteger},
		{"floats", []string{"1.5", "2.25", "-0.5"}, TypeFloat},
		{"booleans", []string{"true", "false", "TRUE", "no"}, TypeBoolean},
		{"dates", []string{"2020-01-01", "2019-12-31", "2021-06-15"}, TypeDate},
		{"text", []string{"alpha", "beta", "gamma"}, TypeText},
		{"mixed degrades to text", []string{"1", "two", "3", "four"}, TypeText},
		{"empty column", []string{"", "", ""}, TypeUnknown},
		{"integers with empties", []string{"1", "", "2", ""}, TypeInteger},
		{"one dirty value in ten", []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "x"}, TypeInteger},
		{"two dirty values in ten", []string{"1", "2", "3", "4", "5", "6", "7", "8", "x", "y"}, TypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := InferSchema([]string{"col"}, sampleFromColumn(tt.values...), DialectSQLite)
			require.Len(t, schema, 1)
			assert.Equal(t, tt.want, schema[0].Type)
		})
	}
}

func TestInferSchemaIntegerPreferredOverFloat(t *testing.T) {
	// Integers parse as floats too; the more specific type wins.
	schema := InferSchema([]string{"n"}, sampleFromColumn("1", "2", "3"), DialectSQLite)
	assert.Equal(t, TypeInteger, schema[0].Type)
}

func TestInferSchemaHeaderOrderAndCount(t *testing.T) {
	header := []string{"c1", "c2", "c3", "c4"}
	schema := InferSchema(header, nil, DialectPostgres)

	require.Len(t, schema, len(header))
	for i, col := range schema {
		assert.Equal(t, header[i], col.Name)
	}
}

func TestStoreIdentifierSanitization(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Subscription Date", "subscription_date"},
		{"First Name", "first_name"},
		{"Customer Id", "customer_id"},
		{"E-Mail  Address!", "e_mail_address"},
		{"Website", "website"},
		{"2nd Phone", "c_2nd_phone"},
		{"Index", "index_col"},
		{"ORDER", "order_col"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			schema := InferSchema([]string{tt.header}, nil, DialectSQLite)
			assert.Equal(t, tt.want, schema[0].StoreIdentifier)
		})
	}
}

func TestStoreIdentifierCollisionsGetSuffixes(t *testing.T) {
	schema := InferSchema([]string{"Name", "name", "NAME "}, nil, DialectPostgres)

	require.Len(t, schema, 3)
	assert.Equal(t, "name", schema[0].StoreIdentifier)
	assert.Equal(t, "name_2", schema[1].StoreIdentifier)
	assert.Equal(t, "name_3", schema[2].StoreIdentifier)
}

func TestStoreIdentifiersUnique(t *testing.T) {
	header := make([]string, 20)
	for i := range header {
		header[i] = "Column"
	}
	schema := InferSchema(header, nil, DialectDuckDB)

	seen := map[string]bool{}
	for _, col := range schema {
		require.False(t, seen[col.StoreIdentifier], "duplicate identifier %s", col.StoreIdentifier)
		seen[col.StoreIdentifier] = true
	}
}

func TestDialectNoneKeepsRawNames(t *testing.T) {
	schema := InferSchema([]string{"Subscription Date", "Index"}, nil, DialectNone)

	assert.Equal(t, "Subscription Date", schema[0].StoreIdentifier)
	assert.Equal(t, "Index", schema[1].StoreIdentifier)
}

func TestFindColumn(t *testing.T) {
	schema := InferSchema([]string{"First Name", "Email Address", "Subscription Date", "Website"}, nil, DialectNone)

	col, ok := schema.FindColumn("email")
	require.True(t, ok)
	assert.Equal(t, "Email Address", col.Name)

	col, ok = schema.FindColumn("subscription", "date")
	require.True(t, ok)
	assert.Equal(t, "Subscription Date", col.Name)

	_, ok = schema.FindColumn("phone")
	assert.False(t, ok)
}

func TestInferSchemaWideSample(t *testing.T) {
	header := []string{"id", "price", "active", "joined", "notes"}
	var sample []RawRow
	for i := 0; i < 50; i++ {
		sample = append(sample, RawRow{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%d.99", i),
			"true",
			"2020-03-15",
			"free text",
		})
	}

	schema := InferSchema(header, sample, DialectDuckDB)
	require.Len(t, schema, 5)
	assert.Equal(t, TypeInteger, schema[0].Type)
	assert.Equal(t, TypeFloat, schema[1].Type)
	assert.Equal(t, TypeBoolean, schema[2].Type)
	assert.Equal(t, TypeDate, schema[3].Type)
	assert.Equal(t, TypeText, schema[4].Type)
}
