package main

import (
	"fmt"
	"os"

	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
	"github.com/withObsrvr/csv-pipeline-workflow/internal/cli/cmd"
	"github.com/withObsrvr/csv-pipeline-workflow/internal/cli/runner"
	"github.com/withObsrvr/csv-pipeline-workflow/store"
)

// Version information set at build time
var (
	version   string
	gitCommit string
	buildDate string
)

func main() {
	cmd.SetVersionInfo(version, gitCommit, buildDate)

	cmd.SetFactories(runner.Factories{
		CreateStoreAdapter: createStoreAdapter,
		DialectForStore:    dialectForStore,
	})

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createStoreAdapter(storeConfig store.StoreConfig) (store.Adapter, error) {
	switch storeConfig.Type {
	case "SaveToPostgreSQL":
		return store.NewSaveToPostgreSQL(storeConfig.Config)
	case "SaveToMongoDB":
		return store.NewSaveToMongoDB(storeConfig.Config)
	case "SaveToSQLite":
		return store.NewSaveToSQLite(storeConfig.Config)
	case "SaveToDuckDB":
		return store.NewSaveToDuckDB(storeConfig.Config)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeConfig.Type)
	}
}

func dialectForStore(storeType string) ingest.Dialect {
	switch storeType {
	case "SaveToPostgreSQL":
		return ingest.DialectPostgres
	case "SaveToSQLite":
		return ingest.DialectSQLite
	case "SaveToDuckDB":
		return ingest.DialectDuckDB
	default:
		return ingest.DialectNone
	}
}
