package store

import "errors"

var (
	// ErrConnection indicates the backend could not be reached or the
	// connection handle failed.
	ErrConnection = errors.New("store connection failed")
	// ErrSchemaConflict indicates the destination container exists with a
	// structure incompatible with the inferred schema.
	ErrSchemaConflict = errors.New("container schema conflict")
	// ErrInvalidState indicates an operation was invoked out of lifecycle
	// order, e.g. LoadBatch before EnsureContainer.
	ErrInvalidState = errors.New("invalid adapter state")
	// ErrLoadFailure indicates a batch could not be persisted.
	ErrLoadFailure = errors.New("batch load failed")
	// ErrQueryExecution indicates the aggregate query failed, typically
	// because the container or the required column is absent.
	ErrQueryExecution = errors.New("aggregate query failed")
)
