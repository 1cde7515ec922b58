package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/csv-pipeline-workflow/internal/cli/runner"
)

var (
	// factories is set by the main package during initialization
	factories runner.Factories

	// dryRun flag for validation only
	dryRun bool

	runCmd = &cobra.Command{
		Use:   "run [config file]",
		Short: "Run ingestion pipelines from configuration",
		Long:  "Load the configured CSV sources into their stores and print each run report",
		Args:  cobra.ExactArgs(1),
		Example: `  csvflow run pipeline_config.yaml
  csvflow run examples/postgres.yaml
  csvflow run --dry-run pipeline_config.yaml`,
		RunE: runPipelines,
	}
)

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate configuration without running the pipelines")
	rootCmd.AddCommand(runCmd)
}

// SetFactories sets the factory functions for creating store adapters
func SetFactories(f runner.Factories) {
	factories = f
}

func runPipelines(cmd *cobra.Command, args []string) error {
	configFile := args[0]

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s", configFile)
	}

	r := runner.New(runner.Options{
		ConfigFile: configFile,
		Verbose:    verbose,
	}, factories)

	if dryRun {
		fmt.Println(color.YellowString("Validating pipeline configuration from %s", configFile))
		if err := r.Validate(); err != nil {
			return err
		}
		fmt.Println(color.GreenString("Configuration is valid"))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return r.Run(ctx)
}
