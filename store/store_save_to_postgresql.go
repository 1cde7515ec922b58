package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
)

// SaveToPostgreSQL loads batches into a typed PostgreSQL table. Each batch is
// one transaction of parameterized inserts; a failed batch rolls back whole.
type SaveToPostgreSQL struct {
	db        *sql.DB
	config    PostgresConfig
	schema    ingest.Schema
	insertSQL string
	lc        lifecycle
}

type PostgresConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	Table        string
	DropExisting bool
	MaxOpenConns int
	MaxIdleConns int
}

func NewSaveToPostgreSQL(config map[string]interface{}) (*SaveToPostgreSQL, error) {
	pgConfig := parsePostgresConfig(config)

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pgConfig.Host, pgConfig.Port, pgConfig.Username, pgConfig.Password,
		pgConfig.Database, pgConfig.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: opening PostgreSQL: %v", ErrConnection, err)
	}

	db.SetMaxOpenConns(pgConfig.MaxOpenConns)
	db.SetMaxIdleConns(pgConfig.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging PostgreSQL at %s:%d: %v", ErrConnection, pgConfig.Host, pgConfig.Port, err)
	}

	log.Printf("Connected to PostgreSQL database %s at %s:%d", pgConfig.Database, pgConfig.Host, pgConfig.Port)

	return newSaveToPostgreSQL(db, pgConfig), nil
}

// newSaveToPostgreSQL wraps an already-open handle; tests inject a mock here.
func newSaveToPostgreSQL(db *sql.DB, config PostgresConfig) *SaveToPostgreSQL {
	return &SaveToPostgreSQL{db: db, config: config}
}

func parsePostgresConfig(config map[string]interface{}) PostgresConfig {
	return PostgresConfig{
		Host:         configString(config, "host", "localhost"),
		Port:         configInt(config, "port", 5432),
		Database:     configString(config, "database", "postgres"),
		Username:     configString(config, "username", "postgres"),
		Password:     configString(config, "password", "postgres"),
		SSLMode:      configString(config, "ssl_mode", "disable"),
		Table:        configString(config, "table", "csv_rows"),
		DropExisting: configBool(config, "drop_existing", false),
		MaxOpenConns: configInt(config, "max_open_conns", 25),
		MaxIdleConns: configInt(config, "max_idle_conns", 5),
	}
}

func postgresColumnType(t ingest.ColumnType) string {
	switch t {
	case ingest.TypeInteger:
		return "BIGINT"
	case ingest.TypeFloat:
		return "DOUBLE PRECISION"
	case ingest.TypeBoolean:
		return "BOOLEAN"
	case ingest.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func (p *SaveToPostgreSQL) EnsureContainer(ctx context.Context, schema ingest.Schema) error {
	if err := p.lc.require("EnsureContainer", stateConnected, stateContainerReady); err != nil {
		return err
	}

	if p.config.DropExisting {
		if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(p.config.Table))); err != nil {
			return fmt.Errorf("dropping table %s: %w", p.config.Table, err)
		}
	}

	exists, err := p.tableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := p.verifyTable(ctx, schema); err != nil {
			return err
		}
		log.Printf("Table %s already exists with a compatible structure", p.config.Table)
	} else {
		columnDefs := []string{"id BIGSERIAL PRIMARY KEY"}
		for _, col := range schema {
			columnDefs = append(columnDefs, fmt.Sprintf("%s %s", quoteIdent(col.StoreIdentifier), postgresColumnType(col.Type)))
		}
		createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(p.config.Table), strings.Join(columnDefs, ", "))
		if _, err := p.db.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("creating table %s: %w", p.config.Table, err)
		}
		log.Printf("Created table %s with %d columns", p.config.Table, len(schema))
	}

	p.schema = schema
	p.insertSQL = buildInsertSQL(p.config.Table, schema, placeholderDollar)
	p.lc.transition(stateContainerReady)
	return nil
}

func (p *SaveToPostgreSQL) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		p.config.Table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking table existence: %w", err)
	}
	return exists, nil
}

func (p *SaveToPostgreSQL) verifyTable(ctx context.Context, schema ingest.Schema) error {
	rows, err := p.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1`,
		p.config.Table)
	if err != nil {
		return fmt.Errorf("reading table columns: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning column name: %w", err)
		}
		existing[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading table columns: %w", err)
	}
	return verifySchemaColumns(schema, existing)
}

func (p *SaveToPostgreSQL) LoadBatch(ctx context.Context, batch ingest.Batch) (int, error) {
	if err := p.lc.require("LoadBatch", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}
	p.lc.transition(stateLoading)

	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: starting transaction: %v", ErrLoadFailure, err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	stmt, err := tx.PrepareContext(ctx, p.insertSQL)
	if err != nil {
		return 0, fmt.Errorf("%w: preparing insert: %v", ErrLoadFailure, err)
	}
	defer stmt.Close()

	for _, row := range batch {
		if _, err := stmt.ExecContext(ctx, rowArgs(p.schema, row)...); err != nil {
			return 0, fmt.Errorf("%w: inserting row: %v", ErrLoadFailure, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing batch: %v", ErrLoadFailure, err)
	}
	return len(batch), nil
}

// RunAggregateQuery counts rows whose email-like column ends with ".com".
func (p *SaveToPostgreSQL) RunAggregateQuery(ctx context.Context) (int64, error) {
	if err := p.lc.require("RunAggregateQuery", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}

	col, ok := p.schema.FindColumn("email")
	if !ok {
		col, ok = p.schema.FindColumn("mail")
	}
	if !ok {
		return 0, fmt.Errorf("%w: no email-like column in schema", ErrQueryExecution)
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s LIKE '%%.com'",
		quoteIdent(p.config.Table), quoteIdent(col.StoreIdentifier))

	var count int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	p.lc.transition(stateQueried)
	log.Printf("PostgreSQL aggregate: %d rows with %s ending in .com", count, col.Name)
	return count, nil
}

func (p *SaveToPostgreSQL) Close() error {
	if p.lc.current == stateClosed {
		return nil
	}
	p.lc.transition(stateClosed)
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
