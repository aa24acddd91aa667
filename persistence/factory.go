package persistence

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vakaflow-ai/vakaflow/flow"
	"github.com/vakaflow-ai/vakaflow/internal/database"
)

// StoreType selects the storage backend
type StoreType string

const (
	// StoreTypeMemory keeps everything in process memory
	StoreTypeMemory StoreType = "memory"
	// StoreTypeDatabase persists through gorm (sqlite, postgres, or mysql)
	StoreTypeDatabase StoreType = "database"
)

// Stores bundles the two storage interfaces plus the owned database handle,
// if any
type Stores struct {
	Flows      flow.Store
	Executions flow.Repository
	db         *database.Manager
}

// Close releases the underlying database connection, if one is owned
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the database manager for health checks; nil for memory stores
func (s *Stores) DB() *database.Manager {
	return s.db
}

// Config selects and configures the storage backend
type Config struct {
	Type     StoreType       `yaml:"type" json:"type"`
	Database database.Config `yaml:"database" json:"database"`
}

// NewStores creates the flow store and execution repository for the
// configured backend, running schema migration for database backends.
func NewStores(config Config, logger *zap.Logger) (*Stores, error) {
	switch config.Type {
	case StoreTypeMemory:
		return &Stores{
			Flows:      NewMemoryFlowStore(),
			Executions: NewMemoryExecutionRepository(),
		}, nil

	case StoreTypeDatabase, "":
		mgr, err := database.Open(config.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := mgr.DB().AutoMigrate(&FlowRow{}, &ExecutionRow{}); err != nil {
			_ = mgr.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		return &Stores{
			Flows:      NewGormFlowStore(mgr.DB(), logger),
			Executions: NewGormExecutionRepository(mgr.DB(), logger),
			db:         mgr,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
