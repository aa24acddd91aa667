package flow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the overall status of one run of a flow
type ExecutionStatus string

const (
	// ExecStatusPending indicates the record is created but not yet admitted
	ExecStatusPending ExecutionStatus = "pending"
	// ExecStatusRunning indicates at least one node task is active or queued
	ExecStatusRunning ExecutionStatus = "running"
	// ExecStatusNodeFailed indicates the most recent node exhausted an attempt
	ExecStatusNodeFailed ExecutionStatus = "node_failed"
	// ExecStatusRetrying indicates a failed node is about to be re-invoked
	ExecStatusRetrying ExecutionStatus = "retrying"
	// ExecStatusCompleted indicates no reachable unexecuted nodes remain
	ExecStatusCompleted ExecutionStatus = "completed"
	// ExecStatusFailed indicates a node failed with no remaining retries
	ExecStatusFailed ExecutionStatus = "failed"
	// ExecStatusCancelled indicates an explicit cancellation was honored
	ExecStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecStatusCompleted, ExecStatusFailed, ExecStatusCancelled:
		return true
	}
	return false
}

// NodeStatus is the status of a single node within an execution
type NodeStatus string

const (
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// ActionError records one integration action failure. Action failures are
// always recorded, never discarded, and by default never abort the owning
// node.
type ActionError struct {
	Phase  ActionPhase `json:"phase"`
	Action string      `json:"action"`
	Detail string      `json:"detail"`
}

// NodeResult records one node's execution within a run
type NodeResult struct {
	NodeID       string         `json:"node_id"`
	Status       NodeStatus     `json:"status"`
	Output       map[string]any `json:"output,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorDetail  string         `json:"error_detail,omitempty"`
	ActionErrors []ActionError  `json:"action_errors,omitempty"`
	Attempts     int            `json:"attempts"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at,omitempty"`
}

// Trigger is the payload that starts one run of a flow
type Trigger struct {
	ContextID   string         `json:"context_id,omitempty"`
	ContextType string         `json:"context_type,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// ExecutionRecord is the durable, append-only history of one run of a flow.
// It has exactly one writer for its lifetime: the orchestrator instance that
// owns the execution. Once the status is terminal the record is immutable;
// Retry creates a new record chained via RetryOf instead of mutating history.
type ExecutionRecord struct {
	ID          string          `json:"id"`
	FlowID      string          `json:"flow_id"`
	FlowVersion int             `json:"flow_version"`
	Status      ExecutionStatus `json:"status"`
	Context     map[string]any  `json:"context,omitempty"`
	NodeResults []*NodeResult   `json:"node_results,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryOf     string          `json:"retry_of,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewExecutionRecord creates a pending record seeded from the trigger payload
func NewExecutionRecord(def *Definition, trigger Trigger) *ExecutionRecord {
	execCtx := map[string]any{}
	if trigger.ContextID != "" {
		execCtx["context_id"] = trigger.ContextID
	}
	if trigger.ContextType != "" {
		execCtx["context_type"] = trigger.ContextType
	}
	if trigger.TriggerData != nil {
		execCtx["trigger_data"] = trigger.TriggerData
	}
	now := time.Now().UTC()
	return &ExecutionRecord{
		ID:          uuid.NewString(),
		FlowID:      def.ID,
		FlowVersion: def.Version,
		Status:      ExecStatusPending,
		Context:     execCtx,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Result returns the recorded result for a node, if any
func (r *ExecutionRecord) Result(nodeID string) (*NodeResult, bool) {
	for _, nr := range r.NodeResults {
		if nr.NodeID == nodeID {
			return nr, true
		}
	}
	return nil, false
}

// CompletedNodes returns the ids of nodes that finished successfully
func (r *ExecutionRecord) CompletedNodes() map[string]bool {
	done := make(map[string]bool)
	for _, nr := range r.NodeResults {
		if nr.Status == NodeStatusCompleted {
			done[nr.NodeID] = true
		}
	}
	return done
}

// resultOutputs assembles the result namespace for scope snapshots
func (r *ExecutionRecord) resultOutputs() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.NodeResults))
	for _, nr := range r.NodeResults {
		if nr.Status == NodeStatusCompleted && nr.Output != nil {
			out[nr.NodeID] = nr.Output
		}
	}
	return out
}

// Clone deep-copies the record via a JSON round trip. Repositories return
// clones so callers can never mutate stored history.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	var c ExecutionRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	return &c
}
