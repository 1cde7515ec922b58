package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cliconfig "github.com/withObsrvr/csv-pipeline-workflow/internal/cli/config"
)

func TestEnvOverridesReachConnectionDefaults(t *testing.T) {
	t.Setenv("CSVFLOW_POSTGRES_HOST", "db.internal")
	t.Setenv("CSVFLOW_MONGODB_URI", "mongodb://db.internal:27017/")

	initConfig()

	cfg, err := cliconfig.Load()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "mongodb://db.internal:27017/", cfg.MongoDB.URI)
	// Keys without an override keep their documented defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
}
