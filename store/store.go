package store

import (
	"context"
	"fmt"

	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
)

// Adapter is the capability set every backend implements: provision the
// destination container, persist batches, run the backend's predetermined
// aggregate count, release the connection. One adapter instance owns one
// connection for the lifetime of a run; nothing else touches it.
type Adapter interface {
	// EnsureContainer idempotently creates the destination table/collection
	// for the schema. An existing container with an incompatible structure is
	// a SchemaConflict unless the adapter was configured to drop and recreate.
	EnsureContainer(ctx context.Context, schema ingest.Schema) error

	// LoadBatch persists one batch and returns the number of rows actually
	// written. Atomicity policy is per adapter and documented on each.
	LoadBatch(ctx context.Context, batch ingest.Batch) (int, error)

	// RunAggregateQuery executes the backend-specific count and returns the
	// scalar result.
	RunAggregateQuery(ctx context.Context) (int64, error)

	// Close releases the connection. Idempotent; the only operation legal on
	// a closed adapter.
	Close() error
}

// StoreConfig selects a backend and carries its options, mirroring the
// pipeline YAML layout.
type StoreConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// state tracks the adapter lifecycle:
// Connected -> ContainerReady -> Loading -> Queried -> Closed.
// Operations invoked out of order fail with InvalidState. Closed is terminal.
type state int

const (
	stateConnected state = iota
	stateContainerReady
	stateLoading
	stateQueried
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateConnected:
		return "Connected"
	case stateContainerReady:
		return "ContainerReady"
	case stateLoading:
		return "Loading"
	case stateQueried:
		return "Queried"
	case stateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type lifecycle struct {
	current state
}

func (l *lifecycle) require(op string, allowed ...state) error {
	for _, s := range allowed {
		if l.current == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not valid in state %s", ErrInvalidState, op, l.current)
}

func (l *lifecycle) transition(s state) {
	l.current = s
}

// Config extraction helpers shared by the adapters. YAML decodes numbers as
// int and flags as bool; env-sourced values may arrive as float64.

func configString(config map[string]interface{}, key, fallback string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func configInt(config map[string]interface{}, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func configBool(config map[string]interface{}, key string, fallback bool) bool {
	if v, ok := config[key].(bool); ok {
		return v
	}
	return fallback
}
