package config

import (
	"github.com/spf13/viper"
)

// Connection defaults per backend, resolved from config file and CSVFLOW_*
// environment variables. Pipeline YAML entries override these; anything still
// missing falls back to the documented defaults below rather than failing.
type CSVFlowConfig struct {
	Postgres PostgresDefaults `mapstructure:"postgres"`
	MongoDB  MongoDefaults    `mapstructure:"mongodb"`
	SQLite   SQLiteDefaults   `mapstructure:"sqlite"`
	DuckDB   DuckDBDefaults   `mapstructure:"duckdb"`
}

type PostgresDefaults struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type MongoDefaults struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SQLiteDefaults struct {
	DBPath string `mapstructure:"db_path"`
}

type DuckDBDefaults struct {
	DBPath string `mapstructure:"db_path"`
}

func Load() (*CSVFlowConfig, error) {
	var cfg CSVFlowConfig

	// Set defaults
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.database", "postgres")
	viper.SetDefault("postgres.username", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017/")
	viper.SetDefault("mongodb.database", "csv_ingest")
	viper.SetDefault("sqlite.db_path", "csv_rows.db")
	viper.SetDefault("duckdb.db_path", "csv_rows.duckdb")

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// StoreDefaults returns the default config map for a store type, used to fill
// keys the pipeline YAML leaves out.
func (c *CSVFlowConfig) StoreDefaults(storeType string) map[string]interface{} {
	switch storeType {
	case "SaveToPostgreSQL":
		return map[string]interface{}{
			"host":     c.Postgres.Host,
			"port":     c.Postgres.Port,
			"database": c.Postgres.Database,
			"username": c.Postgres.Username,
			"password": c.Postgres.Password,
		}
	case "SaveToMongoDB":
		return map[string]interface{}{
			"uri":      c.MongoDB.URI,
			"database": c.MongoDB.Database,
		}
	case "SaveToSQLite":
		return map[string]interface{}{
			"db_path": c.SQLite.DBPath,
		}
	case "SaveToDuckDB":
		return map[string]interface{}{
			"db_path": c.DuckDB.DBPath,
		}
	default:
		return nil
	}
}
