package main

import (
	"fmt"

	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
	"github.com/withObsrvr/csv-pipeline-workflow/store"
)

// Factory functions exported for use by the CLI runner

// CreateStoreAdapterFunc selects the concrete adapter by explicit
// configuration; backends are never picked by runtime type inspection.
func CreateStoreAdapterFunc(storeConfig store.StoreConfig) (store.Adapter, error) {
	switch storeConfig.Type {
	case "SaveToPostgreSQL":
		return store.NewSaveToPostgreSQL(storeConfig.Config)
	case "SaveToMongoDB":
		return store.NewSaveToMongoDB(storeConfig.Config)
	case "SaveToSQLite":
		return store.NewSaveToSQLite(storeConfig.Config)
	case "SaveToDuckDB":
		return store.NewSaveToDuckDB(storeConfig.Config)
	// Add more store types as needed
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeConfig.Type)
	}
}

// DialectForStore maps a store type to the identifier dialect the inferencer
// should sanitize for. The document store keeps raw header names.
func DialectForStore(storeType string) ingest.Dialect {
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
