package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
)

// SaveToSQLite loads batches into an embedded SQLite database. Like the
// PostgreSQL adapter, a batch commits as a single transaction or rolls back
// whole. Date values are stored as ISO-8601 text since SQLite has no native
// date type.
type SaveToSQLite struct {
	db        *sql.DB
	config    SQLiteConfig
	schema    ingest.Schema
	insertSQL string
	lc        lifecycle
}

type SQLiteConfig struct {
	DBPath       string
	Table        string
	DropExisting bool
}

func NewSaveToSQLite(config map[string]interface{}) (*SaveToSQLite, error) {
	liteConfig := parseSQLiteConfig(config)

	db, err := sql.Open("sqlite3", liteConfig.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening SQLite: %v", ErrConnection, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging SQLite %s: %v", ErrConnection, liteConfig.DBPath, err)
	}

	// Set pragmas for better bulk-load performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting SQLite pragmas: %v", ErrConnection, err)
	}

	log.Printf("Connected to SQLite database %s", liteConfig.DBPath)

	return newSaveToSQLite(db, liteConfig), nil
}

func newSaveToSQLite(db *sql.DB, config SQLiteConfig) *SaveToSQLite {
	return &SaveToSQLite{db: db, config: config}
}

func parseSQLiteConfig(config map[string]interface{}) SQLiteConfig {
	return SQLiteConfig{
		DBPath:       configString(config, "db_path", "csv_rows.db"),
		Table:        configString(config, "table", "csv_rows"),
		DropExisting: configBool(config, "drop_existing", false),
	}
}

func sqliteColumnType(t ingest.ColumnType) string {
	switch t {
	case ingest.TypeInteger:
		return "INTEGER"
	case ingest.TypeFloat:
		return "REAL"
	case ingest.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (s *SaveToSQLite) EnsureContainer(ctx context.Context, schema ingest.Schema) error {
	if err := s.lc.require("EnsureContainer", stateConnected, stateContainerReady); err != nil {
		return err
	}

	if s.config.DropExisting {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(s.config.Table))); err != nil {
			return fmt.Errorf("dropping table %s: %w", s.config.Table, err)
		}
	}

	existing, err := s.tableColumns(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if err := verifySchemaColumns(schema, existing); err != nil {
			return err
		}
		log.Printf("Table %s already exists with a compatible structure", s.config.Table)
	} else {
		columnDefs := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}
		for _, col := range schema {
			columnDefs = append(columnDefs, fmt.Sprintf("%s %s", quoteIdent(col.StoreIdentifier), sqliteColumnType(col.Type)))
		}
		createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.config.Table), strings.Join(columnDefs, ", "))
		if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("creating table %s: %w", s.config.Table, err)
		}
		log.Printf("Created table %s with %d columns", s.config.Table, len(schema))
	}

	s.schema = schema
	s.insertSQL = buildInsertSQL(s.config.Table, schema, placeholderQuestion)
	s.lc.transition(stateContainerReady)
	return nil
}

func (s *SaveToSQLite) tableColumns(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(s.config.Table)))
	if err != nil {
		return nil, fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		existing[strings.ToLower(name)] = struct{}{}
	}
	return existing, rows.Err()
}

func (s *SaveToSQLite) LoadBatch(ctx context.Context, batch ingest.Batch) (int, error) {
	if err := s.lc.require("LoadBatch", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}
	s.lc.transition(stateLoading)

	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: starting transaction: %v", ErrLoadFailure, err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	stmt, err := tx.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return 0, fmt.Errorf("%w: preparing insert: %v", ErrLoadFailure, err)
	}
	defer stmt.Close()

	for _, row := range batch {
		if _, err := stmt.ExecContext(ctx, sqliteArgs(s.schema, row)...); err != nil {
			return 0, fmt.Errorf("%w: inserting row: %v", ErrLoadFailure, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing batch: %v", ErrLoadFailure, err)
	}
	return len(batch), nil
}

// sqliteArgs renders date values back to ISO text before binding.
func sqliteArgs(schema ingest.Schema, row ingest.Row) []interface{} {
	args := rowArgs(schema, row)
	for i, v := range args {
		if t, ok := v.(time.Time); ok {
			args[i] = t.Format("2006-01-02")
		}
	}
	return args
}

// RunAggregateQuery counts rows whose URL-like column starts with "https://".
func (s *SaveToSQLite) RunAggregateQuery(ctx context.Context) (int64, error) {
	if err := s.lc.require("RunAggregateQuery", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}

	col, ok := s.schema.FindColumn("website")
	if !ok {
		col, ok = s.schema.FindColumn("site")
	}
	if !ok {
		return 0, fmt.Errorf("%w: no URL-like column in schema", ErrQueryExecution)
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s LIKE 'https://%%'",
		quoteIdent(s.config.Table), quoteIdent(col.StoreIdentifier))

	var count int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	s.lc.transition(stateQueried)
	log.Printf("SQLite aggregate: %d rows with %s starting with https://", count, col.Name)
	return count, nil
}

func (s *SaveToSQLite) Close() error {
	if s.lc.current == stateClosed {
		return nil
	}
	s.lc.transition(stateClosed)
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
