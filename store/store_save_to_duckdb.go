package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
)

// SaveToDuckDB loads batches into an embedded DuckDB database. Batches are
// written as one multi-row INSERT inside a single transaction, which lets the
// engine take its vectorized path instead of row-at-a-time inserts. A failed
// batch rolls back whole.
type SaveToDuckDB struct {
	db     *sql.DB
	config DuckDBConfig
	schema ingest.Schema
	lc     lifecycle
}

type DuckDBConfig struct {
	DBPath       string
	Table        string
	DropExisting bool
}

func NewSaveToDuckDB(config map[string]interface{}) (*SaveToDuckDB, error) {
	duckConfig := parseDuckDBConfig(config)

	db, err := sql.Open("duckdb", duckConfig.DBPath+"?access_mode=READ_WRITE")
	if err != nil {
		return nil, fmt.Errorf("%w: opening DuckDB: %v", ErrConnection, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging DuckDB %s: %v", ErrConnection, duckConfig.DBPath, err)
	}

	log.Printf("Connected to DuckDB database %s", duckConfig.DBPath)

	return newSaveToDuckDB(db, duckConfig), nil
}

func newSaveToDuckDB(db *sql.DB, config DuckDBConfig) *SaveToDuckDB {
	return &SaveToDuckDB{db: db, config: config}
}

func parseDuckDBConfig(config map[string]interface{}) DuckDBConfig {
	return DuckDBConfig{
		DBPath:       configString(config, "db_path", "csv_rows.duckdb"),
		Table:        configString(config, "table", "csv_rows"),
		DropExisting: configBool(config, "drop_existing", false),
	}
}

func duckdbColumnType(t ingest.ColumnType) string {
	switch t {
	case ingest.TypeInteger:
		return "BIGINT"
	case ingest.TypeFloat:
		return "DOUBLE"
	case ingest.TypeBoolean:
		return "BOOLEAN"
	case ingest.TypeDate:
		return "DATE"
	default:
		return "VARCHAR"
	}
}

func (d *SaveToDuckDB) EnsureContainer(ctx context.Context, schema ingest.Schema) error {
	if err := d.lc.require("EnsureContainer", stateConnected, stateContainerReady); err != nil {
		return err
	}

	if d.config.DropExisting {
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(d.config.Table))); err != nil {
			return fmt.Errorf("dropping table %s: %w", d.config.Table, err)
		}
	}

	existing, err := d.tableColumns(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if err := verifySchemaColumns(schema, existing); err != nil {
			return err
		}
		log.Printf("Table %s already exists with a compatible structure", d.config.Table)
	} else {
		columnDefs := make([]string, 0, len(schema))
		for _, col := range schema {
			columnDefs = append(columnDefs, fmt.Sprintf("%s %s", quoteIdent(col.StoreIdentifier), duckdbColumnType(col.Type)))
		}
		createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(d.config.Table), strings.Join(columnDefs, ", "))
		if _, err := d.db.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("creating table %s: %w", d.config.Table, err)
		}
		log.Printf("Created table %s with %d columns", d.config.Table, len(schema))
	}

	d.schema = schema
	d.lc.transition(stateContainerReady)
	return nil
}

func (d *SaveToDuckDB) tableColumns(ctx context.Context) (map[string]struct{}, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = ?`, d.config.Table)
	if err != nil {
		return nil, fmt.Errorf("reading table columns: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		existing[strings.ToLower(name)] = struct{}{}
	}
	return existing, rows.Err()
}

func (d *SaveToDuckDB) LoadBatch(ctx context.Context, batch ingest.Batch) (int, error) {
	if err := d.lc.require("LoadBatch", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}
	d.lc.transition(stateLoading)

	if len(batch) == 0 {
		return 0, nil
	}

	// One INSERT with a VALUES tuple per row keeps the write on the engine's
	// bulk path. Parameters stay bound, never interpolated.
	tuple := "(" + placeholders(placeholderQuestion, len(d.schema)) + ")"
	tuples := make([]string, len(batch))
	args := make([]interface{}, 0, len(batch)*len(d.schema))
	for i, row := range batch {
		tuples[i] = tuple
		args = append(args, rowArgs(d.schema, row)...)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(d.config.Table), columnList(d.schema), strings.Join(tuples, ", "))

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: starting transaction: %v", ErrLoadFailure, err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
		return 0, fmt.Errorf("%w: bulk insert: %v", ErrLoadFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing batch: %v", ErrLoadFailure, err)
	}
	return len(batch), nil
}

// RunAggregateQuery counts rows whose URL-like column has the ".info"
// top-level domain. Two LIKE clauses cover bare domains and domains with a
// path suffix.
func (d *SaveToDuckDB) RunAggregateQuery(ctx context.Context) (int64, error) {
	if err := d.lc.require("RunAggregateQuery", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}

	col, ok := d.schema.FindColumn("website")
	if !ok {
		col, ok = d.schema.FindColumn("site")
	}
	if !ok {
		return 0, fmt.Errorf("%w: no URL-like column in schema", ErrQueryExecution)
	}

	ident := quoteIdent(col.StoreIdentifier)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s LIKE '%%.info' OR %s LIKE '%%.info/%%'",
		quoteIdent(d.config.Table), ident, ident)

	var count int64
	if err := d.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	d.lc.transition(stateQueried)
	log.Printf("DuckDB aggregate: %d rows with %s under the .info TLD", count, col.Name)
	return count, nil
}

func (d *SaveToDuckDB) Close() error {
	if d.lc.current == stateClosed {
		return nil
	}
	d.lc.transition(stateClosed)
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
