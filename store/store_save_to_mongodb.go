package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
)

// documentCollection is the slice of *mongo.Collection the adapter uses.
// Tests substitute a mock.
type documentCollection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Drop(ctx context.Context) error
}

// SaveToMongoDB loads batches into a schema-less collection. Values are still
// coerced client-side per the inferred schema, so dates land as native BSON
// dates rather than text. Batches use unordered InsertMany: on a partial
// failure the adapter logs each write error and reports the count actually
// inserted (best-effort policy, unlike the SQL adapters' whole-batch
// rollback).
type SaveToMongoDB struct {
	client     *mongo.Client
	collection documentCollection
	config     MongoDBConfig
	schema     ingest.Schema
	lc         lifecycle
}

type MongoDBConfig struct {
	URI            string
	Database       string
	Collection     string
	DropExisting   bool
	ConnectTimeout time.Duration
}

func NewSaveToMongoDB(config map[string]interface{}) (*SaveToMongoDB, error) {
	dbConfig := parseMongoDBConfig(config)

	ctx, cancel := context.WithTimeout(context.Background(), dbConfig.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(dbConfig.URI)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: creating MongoDB client: %v", ErrConnection, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("%w: connecting to MongoDB at %s: %v", ErrConnection, dbConfig.URI, err)
	}

	collection := client.Database(dbConfig.Database).Collection(dbConfig.Collection)

	log.Printf("Connected to MongoDB database %s, collection %s", dbConfig.Database, dbConfig.Collection)

	return &SaveToMongoDB{
		client:     client,
		collection: collection,
		config:     dbConfig,
	}, nil
}

// newSaveToMongoDB wires an injected collection; used by tests.
func newSaveToMongoDB(collection documentCollection, config MongoDBConfig) *SaveToMongoDB {
	return &SaveToMongoDB{collection: collection, config: config}
}

func parseMongoDBConfig(config map[string]interface{}) MongoDBConfig {
	return MongoDBConfig{
		URI:            configString(config, "uri", "mongodb://localhost:27017/"),
		Database:       configString(config, "database", "csv_ingest"),
		Collection:     configString(config, "collection", "csv_rows"),
		DropExisting:   configBool(config, "drop_existing", false),
		ConnectTimeout: time.Duration(configInt(config, "connect_timeout", 10)) * time.Second,
	}
}

// EnsureContainer is mostly a no-op for a schema-less store: MongoDB creates
// the collection on first insert. The adapter still records the schema for
// client-side coercion and honors drop_existing.
func (m *SaveToMongoDB) EnsureContainer(ctx context.Context, schema ingest.Schema) error {
	if err := m.lc.require("EnsureContainer", stateConnected, stateContainerReady); err != nil {
		return err
	}

	if m.config.DropExisting {
		if err := m.collection.Drop(ctx); err != nil {
			return fmt.Errorf("dropping collection %s: %w", m.config.Collection, err)
		}
		log.Printf("Dropped existing collection %s", m.config.Collection)
	}

	m.schema = schema
	m.lc.transition(stateContainerReady)
	return nil
}

func (m *SaveToMongoDB) LoadBatch(ctx context.Context, batch ingest.Batch) (int, error) {
	if err := m.lc.require("LoadBatch", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}
	m.lc.transition(stateLoading)

	if len(batch) == 0 {
		return 0, nil
	}

	documents := make([]interface{}, len(batch))
	for i, row := range batch {
		doc := make(bson.D, 0, len(m.schema))
		for _, col := range m.schema {
			if v, ok := row[col.Name]; ok && v != nil {
				doc = append(doc, bson.E{Key: col.StoreIdentifier, Value: v})
			}
		}
		documents[i] = doc
	}

	result, err := m.collection.InsertMany(ctx, documents, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) {
			for _, we := range bulkErr.WriteErrors {
				log.Printf("Document insert failed at batch index %d: %s", we.Index, we.Message)
			}
			inserted := 0
			if result != nil {
				inserted = len(result.InsertedIDs)
			}
			return inserted, nil
		}
		return 0, fmt.Errorf("%w: inserting documents: %v", ErrLoadFailure, err)
	}
	return len(result.InsertedIDs), nil
}

// RunAggregateQuery counts documents whose subscription-date field falls in
// calendar year 2020. The comparison works because dates were inserted as
// BSON dates, not strings.
func (m *SaveToMongoDB) RunAggregateQuery(ctx context.Context) (int64, error) {
	if err := m.lc.require("RunAggregateQuery", stateContainerReady, stateLoading); err != nil {
		return 0, err
	}

	col, ok := m.schema.FindColumn("subscription", "date")
	if !ok {
		col, ok = m.schema.FindColumn("date")
	}
	if !ok {
		return 0, fmt.Errorf("%w: no subscription-date field in schema", ErrQueryExecution)
	}

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	count, err := m.collection.CountDocuments(ctx, bson.M{
		col.StoreIdentifier: bson.M{"$gte": start, "$lt": end},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	m.lc.transition(stateQueried)
	log.Printf("MongoDB aggregate: %d documents with %s in 2020", count, col.Name)
	return count, nil
}

func (m *SaveToMongoDB) Close() error {
	if m.lc.current == stateClosed {
		return nil
	}
	m.lc.transition(stateClosed)
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.client.Disconnect(ctx)
	}
	return nil
}
