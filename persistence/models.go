package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vakaflow-ai/vakaflow/flow"
)

// FlowRow is the relational shape of a flow definition. The graph itself is
// stored as a JSON document; only the fields the engine filters on are
// columns.
type FlowRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:255;index"`
	Version   int       `gorm:"not null"`
	Status    string    `gorm:"size:32;index"`
	Document  []byte    `gorm:"type:blob"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the gorm default
func (FlowRow) TableName() string { return "flows" }

// ExecutionRow is the relational shape of an execution record. Node results
// and the execution context travel as JSON documents.
type ExecutionRow struct {
	ID          string    `gorm:"primaryKey;size:64"`
	FlowID      string    `gorm:"size:64;index:idx_exec_flow"`
	FlowVersion int       `gorm:"not null"`
	Status      string    `gorm:"size:32;index"`
	Context     []byte    `gorm:"type:blob"`
	NodeResults []byte    `gorm:"type:blob"`
	Error       string    `gorm:"type:text"`
	RetryOf     string    `gorm:"size:64;index"`
	CreatedAt   time.Time `gorm:"index:idx_exec_flow"`
	UpdatedAt   time.Time
}

// TableName overrides the gorm default
func (ExecutionRow) TableName() string { return "executions" }

func flowToRow(def *flow.Definition) (*FlowRow, error) {
	doc, err := def.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("encode flow document: %w", err)
	}
	return &FlowRow{
		ID:       def.ID,
		Name:     def.Name,
		Version:  def.Version,
		Status:   string(def.Status),
		Document: []byte(doc),
	}, nil
}

func rowToFlow(row *FlowRow) (*flow.Definition, error) {
	def, err := flow.DefinitionFromJSON(row.Document)
	if err != nil {
		return nil, fmt.Errorf("decode flow document %s: %w", row.ID, err)
	}
	return def, nil
}

func executionToRow(rec *flow.ExecutionRecord) (*ExecutionRow, error) {
	execCtx, err := json.Marshal(rec.Context)
	if err != nil {
		return nil, fmt.Errorf("encode execution context: %w", err)
	}
	results, err := json.Marshal(rec.NodeResults)
	if err != nil {
		return nil, fmt.Errorf("encode node results: %w", err)
	}
	return &ExecutionRow{
		ID:          rec.ID,
		FlowID:      rec.FlowID,
		FlowVersion: rec.FlowVersion,
		Status:      string(rec.Status),
		Context:     execCtx,
		NodeResults: results,
		Error:       rec.Error,
		RetryOf:     rec.RetryOf,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

func rowToExecution(row *ExecutionRow) (*flow.ExecutionRecord, error) {
	rec := &flow.ExecutionRecord{
		ID:          row.ID,
		FlowID:      row.FlowID,
		FlowVersion: row.FlowVersion,
		Status:      flow.ExecutionStatus(row.Status),
		Error:       row.Error,
		RetryOf:     row.RetryOf,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &rec.Context); err != nil {
			return nil, fmt.Errorf("decode execution context %s: %w", row.ID, err)
		}
	}
	if len(row.NodeResults) > 0 {
		if err := json.Unmarshal(row.NodeResults, &rec.NodeResults); err != nil {
			return nil, fmt.Errorf("decode node results %s: %w", row.ID, err)
		}
	}
	return rec, nil
}
