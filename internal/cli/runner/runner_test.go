package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cliconfig "github.com/withObsrvr/csv-pipeline-workflow/internal/cli/config"
	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
	"github.com/withObsrvr/csv-pipeline-workflow/store"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid",
			yaml: "pipelines:\n  P:\n    source:\n      path: data.csv\n    store:\n      type: SaveToSQLite\n",
		},
		{
			name:    "no pipelines",
			yaml:    "pipelines: {}\n",
			wantErr: "no pipelines",
		},
		{
			name:    "missing source path",
			yaml:    "pipelines:\n  P:\n    store:\n      type: SaveToSQLite\n",
			wantErr: "missing source path",
		},
		{
			name:    "unknown store type",
			yaml:    "pipelines:\n  P:\n    source:\n      path: data.csv\n    store:\n      type: SaveToRedis\n",
			wantErr: "unsupported store type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Options{ConfigFile: writeTempFile(t, "config.yaml", tt.yaml)}, Factories{})
			err := r.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateMissingConfigFile(t *testing.T) {
	r := New(Options{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}, Factories{})
	assert.Error(t, r.Validate())
}

func TestMergeDefaults(t *testing.T) {
	merged := mergeDefaults(
		map[string]interface{}{"host": "db.example.com"},
		map[string]interface{}{"host": "localhost", "port": 5432},
	)

	assert.Equal(t, "db.example.com", merged["host"])
	assert.Equal(t, 5432, merged["port"])

	merged = mergeDefaults(nil, map[string]interface{}{"db_path": "rows.db"})
	assert.Equal(t, "rows.db", merged["db_path"])
}

type stubAdapter struct {
	loaded      int
	queryResult int64
	schema      ingest.Schema
	config      store.StoreConfig
}

func (s *stubAdapter) EnsureContainer(ctx context.Context, schema ingest.Schema) error {
	s.schema = schema
	return nil
}

func (s *stubAdapter) LoadBatch(ctx context.Context, batch ingest.Batch) (int, error) {
	s.loaded += len(batch)
	return len(batch), nil
}

func (s *stubAdapter) RunAggregateQuery(ctx context.Context) (int64, error) {
	return s.queryResult, nil
}

func (s *stubAdapter) Close() error { return nil }

func TestRunPipelineMergesConnectionDefaults(t *testing.T) {
	csv := writeTempFile(t, "input.csv", "Name,Email\nA,a@x.com\nB,b@y.org\n")

	stub := &stubAdapter{queryResult: 7}
	r := New(Options{}, Factories{
		CreateStoreAdapter: func(config store.StoreConfig) (store.Adapter, error) {
			stub.config = config
			return stub, nil
		},
		DialectForStore: func(string) ingest.Dialect { return ingest.DialectSQLite },
	})

	defaults, err := cliconfig.Load()
	require.NoError(t, err)

	snapshot, err := r.runPipeline(context.Background(), PipelineConfig{
		Source: SourceConfig{Path: csv},
		Store:  store.StoreConfig{Type: "SaveToSQLite"},
	}, defaults)
	require.NoError(t, err)

	assert.Equal(t, int64(2), snapshot.RowsLoaded)
	assert.Equal(t, int64(7), snapshot.QueryResult)
	assert.Equal(t, 2, stub.loaded)
	// The YAML omitted db_path; the defaults layer supplies it.
	assert.Equal(t, "csv_rows.db", stub.config.Config["db_path"])
}
