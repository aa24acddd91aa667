package persistence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vakaflow-ai/vakaflow/flow"
)

// ErrNotFound is returned when a flow or execution id does not exist
var ErrNotFound = errors.New("not found")

// GormFlowStore implements flow.Store on a relational database through gorm.
// Definitions are validated before they are written; a definition that fails
// validation never reaches storage.
type GormFlowStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormFlowStore creates a flow store over an open gorm connection
func NewGormFlowStore(db *gorm.DB, logger *zap.Logger) *GormFlowStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormFlowStore{
		db:     db,
		logger: logger.With(zap.String("component", "flow_store")),
	}
}

// Put validates and saves a definition, replacing any prior version
func (s *GormFlowStore) Put(ctx context.Context, def *flow.Definition) error {
	if err := flow.Validate(def); err != nil {
		return err
	}
	row, err := flowToRow(def)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("save flow %s: %w", def.ID, err)
	}
	s.logger.Info("flow saved",
		zap.String("flow_id", def.ID),
		zap.Int("version", def.Version),
		zap.String("status", string(def.Status)),
	)
	return nil
}

// Get returns the stored definition for a flow id
func (s *GormFlowStore) Get(ctx context.Context, flowID string) (*flow.Definition, error) {
	var row FlowRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", flowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("flow %s: %w", flowID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	return rowToFlow(&row)
}

// List returns all stored definitions
func (s *GormFlowStore) List(ctx context.Context) ([]*flow.Definition, error) {
	var rows []FlowRow
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defs := make([]*flow.Definition, 0, len(rows))
	for i := range rows {
		def, err := rowToFlow(&rows[i])
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// GormExecutionRepository implements flow.Repository on a relational database
// through gorm
type GormExecutionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormExecutionRepository creates an execution repository over an open
// gorm connection
func NewGormExecutionRepository(db *gorm.DB, logger *zap.Logger) *GormExecutionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormExecutionRepository{
		db:     db,
		logger: logger.With(zap.String("component", "execution_repository")),
	}
}

// Create inserts a new execution record
func (r *GormExecutionRepository) Create(ctx context.Context, rec *flow.ExecutionRecord) error {
	row, err := executionToRow(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create execution %s: %w", rec.ID, err)
	}
	return nil
}

// Update overwrites the stored record with the caller's snapshot. The
// orchestrator is the single writer of a record, so a plain overwrite is safe.
func (r *GormExecutionRepository) Update(ctx context.Context, rec *flow.ExecutionRecord) error {
	row, err := executionToRow(rec)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Save(row)
	if res.Error != nil {
		return fmt.Errorf("update execution %s: %w", rec.ID, res.Error)
	}
	return nil
}

// Get returns the execution record for an id
func (r *GormExecutionRepository) Get(ctx context.Context, executionID string) (*flow.ExecutionRecord, error) {
	var row ExecutionRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", executionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", executionID, err)
	}
	return rowToExecution(&row)
}

// List returns execution records matching the filter, newest first
func (r *GormExecutionRepository) List(ctx context.Context, filter flow.ListFilter) ([]*flow.ExecutionRecord, error) {
	q := r.db.WithContext(ctx).Model(&ExecutionRow{})
	if filter.FlowID != "" {
		q = q.Where("flow_id = ?", filter.FlowID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.Start.IsZero() {
		q = q.Where("created_at >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		q = q.Where("created_at < ?", filter.End)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []ExecutionRow
	if err := q.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	recs := make([]*flow.ExecutionRecord, 0, len(rows))
	for i := range rows {
		rec, err := rowToExecution(&rows[i])
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
