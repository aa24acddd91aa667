package flow

import (
	"context"
	"time"
)

// Store owns immutable, versioned flow definitions. The engine only reads
// definitions; authoring happens outside the engine. A definition loaded for
// an execution is treated as an immutable snapshot for the lifetime of that
// execution.
type Store interface {
	// Put validates and saves a definition
	Put(ctx context.Context, def *Definition) error
	// Get returns the active version of a flow
	Get(ctx context.Context, flowID string) (*Definition, error)
	// List returns all stored definitions
	List(ctx context.Context) ([]*Definition, error)
}

// ListFilter narrows an execution history query
type ListFilter struct {
	FlowID string
	Status ExecutionStatus
	Start  time.Time
	End    time.Time
	Limit  int
}

// Repository is the durable store of execution records. Records are created
// once, updated only by the orchestrator that owns them, and never deleted by
// the engine (retention is an external concern).
type Repository interface {
	Create(ctx context.Context, rec *ExecutionRecord) error
	Update(ctx context.Context, rec *ExecutionRecord) error
	Get(ctx context.Context, executionID string) (*ExecutionRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*ExecutionRecord, error)
}
