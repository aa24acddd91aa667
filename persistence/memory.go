package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vakaflow-ai/vakaflow/flow"
)

// MemoryFlowStore implements flow.Store in process memory. Intended for tests
// and single-process development setups.
type MemoryFlowStore struct {
	mu    sync.RWMutex
	flows map[string]*flow.Definition
}

// NewMemoryFlowStore creates an empty in-memory flow store
func NewMemoryFlowStore() *MemoryFlowStore {
	return &MemoryFlowStore{flows: make(map[string]*flow.Definition)}
}

// Put validates and stores a definition
func (s *MemoryFlowStore) Put(_ context.Context, def *flow.Definition) error {
	if err := flow.Validate(def); err != nil {
		return err
	}
	doc, err := def.ToJSON()
	if err != nil {
		return err
	}
	copied, err := flow.DefinitionFromJSON([]byte(doc))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[def.ID] = copied
	return nil
}

// Get returns the stored definition for a flow id
func (s *MemoryFlowStore) Get(_ context.Context, flowID string) (*flow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", flowID, ErrNotFound)
	}
	return def, nil
}

// List returns all stored definitions
func (s *MemoryFlowStore) List(_ context.Context) ([]*flow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]*flow.Definition, 0, len(s.flows))
	for _, def := range s.flows {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// MemoryExecutionRepository implements flow.Repository in process memory.
// Records are cloned on the way in and out so callers can never mutate
// stored history.
type MemoryExecutionRepository struct {
	mu   sync.RWMutex
	recs map[string]*flow.ExecutionRecord
}

// NewMemoryExecutionRepository creates an empty in-memory repository
func NewMemoryExecutionRepository() *MemoryExecutionRepository {
	return &MemoryExecutionRepository{recs: make(map[string]*flow.ExecutionRecord)}
}

// Create inserts a new execution record
func (r *MemoryExecutionRepository) Create(_ context.Context, rec *flow.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recs[rec.ID]; exists {
		return fmt.Errorf("execution %s already exists", rec.ID)
	}
	r.recs[rec.ID] = rec.Clone()
	return nil
}

// Update overwrites the stored record with the caller's snapshot
func (r *MemoryExecutionRepository) Update(_ context.Context, rec *flow.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recs[rec.ID]; !exists {
		return fmt.Errorf("execution %s: %w", rec.ID, ErrNotFound)
	}
	r.recs[rec.ID] = rec.Clone()
	return nil
}

// Get returns a clone of the execution record for an id
func (r *MemoryExecutionRepository) Get(_ context.Context, executionID string) (*flow.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[executionID]
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	return rec.Clone(), nil
}

// List returns clones of records matching the filter, newest first
func (r *MemoryExecutionRepository) List(_ context.Context, filter flow.ListFilter) ([]*flow.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*flow.ExecutionRecord
	for _, rec := range r.recs {
		if filter.FlowID != "" && rec.FlowID != filter.FlowID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if !filter.Start.IsZero() && rec.CreatedAt.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && !rec.CreatedAt.Before(filter.End) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
