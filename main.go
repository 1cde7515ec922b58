package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"gopkg.in/yaml.v2"
)

func main() {
	// Define command line flags
	configFile := flag.String("config", "pipeline_config.yaml", "Path to pipeline configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Read configuration from specified file
	configBytes, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatalf("Error reading config file %s: %v", *configFile, err)
	}

	var config Config
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		log.Fatalf("Error parsing config: %v", err)
	}

	// Run each pipeline; a fatal stage failure makes the process exit
	// non-zero once the remaining pipelines have had their turn.
	failed := false
	for name, pipelineConfig := range config.Pipelines {
		log.Printf("Starting pipeline: %s", name)
		snapshot, err := setupPipeline(ctx, pipelineConfig)
		if err != nil {
			log.Printf("Pipeline error: error in pipeline %s: %v", name, err)
			failed = true
			continue
		}
		printReport(name, snapshot)
	}

	log.Printf("All pipelines finished.")
	if failed {
		os.Exit(1)
	}
}
