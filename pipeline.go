package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
	"github.com/withObsrvr/csv-pipeline-workflow/store"
)

type Config struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

type PipelineConfig struct {
	Name   string            `yaml:"name"`
	Source SourceConfig      `yaml:"source"`
	Store  store.StoreConfig `yaml:"store"`
}

type SourceConfig struct {
	Path       string `yaml:"path"`
	BatchSize  int    `yaml:"batch_size"`
	SampleSize int    `yaml:"sample_size"`
}

// createStoreAdapter is a seam for tests to substitute a fake adapter.
var createStoreAdapter = CreateStoreAdapterFunc

// setupPipeline runs one ingestion end to end: sample the source for schema
// inference, provision the container, stream batches, run the store's
// aggregate, and return the report snapshot. Stages run strictly in order on
// a single connection owned by this run.
func setupPipeline(ctx context.Context, pipelineConfig PipelineConfig) (ingest.ReportSnapshot, error) {
	var snapshot ingest.ReportSnapshot

	batchSize := pipelineConfig.Source.BatchSize
	if batchSize <= 0 {
		batchSize = ingest.DefaultBatchSize
	}
	sampleSize := pipelineConfig.Source.SampleSize
	if sampleSize <= 0 {
		sampleSize = ingest.DefaultSampleSize
	}

	// Inference pass. The reader is forward-only, so the load pass below
	// reopens the source.
	header, sample, err := ingest.ReadSample(pipelineConfig.Source.Path, sampleSize)
	if err != nil {
		return snapshot, fmt.Errorf("error reading source: %w", err)
	}
	log.Printf("Source %s has %d columns", pipelineConfig.Source.Path, len(header))

	schema := ingest.InferSchema(header, sample, DialectForStore(pipelineConfig.Store.Type))
	for _, col := range schema {
		log.Printf("Inferred column %s -> %s (%s)", col.Name, col.StoreIdentifier, col.Type)
	}

	adapter, err := createStoreAdapter(pipelineConfig.Store)
	if err != nil {
		return snapshot, fmt.Errorf("error creating store adapter: %w", err)
	}
	defer adapter.Close()

	report := ingest.StartRun()

	if err := adapter.EnsureContainer(ctx, schema); err != nil {
		return snapshot, fmt.Errorf("error ensuring container: %w", err)
	}

	reader, err := ingest.NewCSVReader(pipelineConfig.Source.Path)
	if err != nil {
		return snapshot, fmt.Errorf("error reopening source: %w", err)
	}
	defer reader.Close()

	log.Printf("Loading data from %s...", pipelineConfig.Source.Path)
	loaded := 0
	batch := make(ingest.Batch, 0, batchSize)
	for {
		raw, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return snapshot, fmt.Errorf("error reading source: %w", err)
		}
		batch = append(batch, ingest.CoerceRow(schema, raw))
		if len(batch) >= batchSize {
			n, err := flushBatch(ctx, adapter, batch, report)
			if err != nil {
				return snapshot, err
			}
			loaded += n
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		n, err := flushBatch(ctx, adapter, batch, report)
		if err != nil {
			return snapshot, err
		}
		loaded += n
	}
	report.AddSkipped(reader.Skipped())
	log.Printf("Load complete: %d rows loaded, %d malformed rows skipped", loaded, reader.Skipped())

	result, err := adapter.RunAggregateQuery(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("error running aggregate query: %w", err)
	}
	report.SetQueryResult(result)

	return report.Finalize(), nil
}

func flushBatch(ctx context.Context, adapter store.Adapter, batch ingest.Batch, report *ingest.RunReport) (int, error) {
	n, err := adapter.LoadBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("error loading batch: %w", err)
	}
	report.AddLoaded(n)
	log.Printf("Loaded %d rows...", n)
	return n, nil
}

func printReport(name string, snapshot ingest.ReportSnapshot) {
	fmt.Printf("\nResults for %s:\n", name)
	fmt.Printf("  Rows loaded:  %d\n", snapshot.RowsLoaded)
	fmt.Printf("  Rows skipped: %d\n", snapshot.RowsSkipped)
	fmt.Printf("  Query result: %d\n", snapshot.QueryResult)
	fmt.Printf("  Elapsed:      %.2f seconds\n", snapshot.ElapsedSeconds)
}
