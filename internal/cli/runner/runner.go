package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v2"

	cliconfig "github.com/withObsrvr/csv-pipeline-workflow/internal/cli/config"
	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
	"github.com/withObsrvr/csv-pipeline-workflow/store"
)

type Options struct {
	ConfigFile string
	Verbose    bool
}

// Factory functions for creating pipeline components
type Factories struct {
	CreateStoreAdapter func(store.StoreConfig) (store.Adapter, error)
	DialectForStore    func(string) ingest.Dialect
}

type Runner struct {
	opts      Options
	factories Factories
}

// Config structures - mirroring from main.go
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

var knownStoreTypes = map[string]struct{}{
	"SaveToPostgreSQL": {},
	"SaveToMongoDB":    {},
	"SaveToSQLite":     {},
	"SaveToDuckDB":     {},
}

func New(opts Options, factories Factories) *Runner {
	return &Runner{
		opts:      opts,
		factories: factories,
	}
}

func (r *Runner) loadConfig() (*Config, error) {
	configBytes, err := os.ReadFile(r.opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", r.opts.ConfigFile, err)
	}

	var config Config
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &config, nil
}

// Validate checks the configuration without touching any backend.
func (r *Runner) Validate() error {
	config, err := r.loadConfig()
	if err != nil {
		return err
	}
	if len(config.Pipelines) == 0 {
		return fmt.Errorf("configuration defines no pipelines")
	}
	for name, p := range config.Pipelines {
		if p.Source.Path == "" {
			return fmt.Errorf("pipeline %s: missing source path", name)
		}
		if _, ok := knownStoreTypes[p.Store.Type]; !ok {
			return fmt.Errorf("pipeline %s: unsupported store type %q", name, p.Store.Type)
		}
	}
	return nil
}

func (r *Runner) Run(ctx context.Context) error {
	config, err := r.loadConfig()
	if err != nil {
		return err
	}

	defaults, err := cliconfig.Load()
	if err != nil {
		return fmt.Errorf("error loading connection defaults: %w", err)
	}

	failed := false
	for name, pipelineConfig := range config.Pipelines {
		log.Printf("Starting pipeline: %s", name)
		snapshot, err := r.runPipeline(ctx, pipelineConfig, defaults)
		if err != nil {
			color.Red("Pipeline %s failed: %v", name, err)
			failed = true
			continue
		}
		printReport(name, snapshot)
	}

	log.Printf("All pipelines finished.")
	if failed {
		return fmt.Errorf("one or more pipelines failed")
	}
	return nil
}

func (r *Runner) runPipeline(ctx context.Context, pipelineConfig PipelineConfig, defaults *cliconfig.CSVFlowConfig) (ingest.ReportSnapshot, error) {
	var snapshot ingest.ReportSnapshot

	batchSize := pipelineConfig.Source.BatchSize
	if batchSize <= 0 {
		batchSize = ingest.DefaultBatchSize
	}
	sampleSize := pipelineConfig.Source.SampleSize
	if sampleSize <= 0 {
		sampleSize = ingest.DefaultSampleSize
	}

	// Fill connection parameters the pipeline YAML left out.
	storeConfig := pipelineConfig.Store
	storeConfig.Config = mergeDefaults(storeConfig.Config, defaults.StoreDefaults(storeConfig.Type))

	header, sample, err := ingest.ReadSample(pipelineConfig.Source.Path, sampleSize)
	if err != nil {
		return snapshot, fmt.Errorf("error reading source: %w", err)
	}
	if r.opts.Verbose {
		log.Printf("Source %s has %d columns", pipelineConfig.Source.Path, len(header))
	}

	schema := ingest.InferSchema(header, sample, r.factories.DialectForStore(storeConfig.Type))

	adapter, err := r.factories.CreateStoreAdapter(storeConfig)
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
			n, err := adapter.LoadBatch(ctx, batch)
			if err != nil {
				return snapshot, fmt.Errorf("error loading batch: %w", err)
			}
			report.AddLoaded(n)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		n, err := adapter.LoadBatch(ctx, batch)
		if err != nil {
			return snapshot, fmt.Errorf("error loading batch: %w", err)
		}
		report.AddLoaded(n)
	}
	report.AddSkipped(reader.Skipped())

	result, err := adapter.RunAggregateQuery(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("error running aggregate query: %w", err)
	}
	report.SetQueryResult(result)

	return report.Finalize(), nil
}

func mergeDefaults(config, defaults map[string]interface{}) map[string]interface{} {
	if config == nil {
		config = make(map[string]interface{}, len(defaults))
	}
	for key, value := range defaults {
		if _, ok := config[key]; !ok {
			config[key] = value
		}
	}
	return config
}

func printReport(name string, snapshot ingest.ReportSnapshot) {
	color.Cyan("\nResults for %s:", name)
	fmt.Printf("  Rows loaded:  %d\n", snapshot.RowsLoaded)
	fmt.Printf("  Rows skipped: %d\n", snapshot.RowsSkipped)
	fmt.Printf("  Query result: %d\n", snapshot.QueryResult)
	fmt.Printf("  Elapsed:      %.2f seconds\n", snapshot.ElapsedSeconds)
}
