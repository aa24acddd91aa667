package flow

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeType defines the type of a flow node
type NodeType string

const (
	// NodeTypeAgent invokes an agent skill
	NodeTypeAgent NodeType = "agent"
	// NodeTypeAction performs only the configured agentic actions
	NodeTypeAction NodeType = "action"
	// NodeTypeTerminal marks a branch as complete, no outgoing edges are followed
	NodeTypeTerminal NodeType = "terminal"
)

// FlowStatus is the lifecycle status of a flow definition
type FlowStatus string

const (
	FlowStatusDraft     FlowStatus = "draft"
	FlowStatusActive    FlowStatus = "active"
	FlowStatusPaused    FlowStatus = "paused"
	FlowStatusCompleted FlowStatus = "completed"
	FlowStatusFailed    FlowStatus = "failed"
	FlowStatusCancelled FlowStatus = "cancelled"
)

// LimitPolicy decides what happens to a trigger that would exceed
// max_concurrent_executions
type LimitPolicy string

const (
	// LimitPolicyQueue queues the run until a slot frees up (default)
	LimitPolicyQueue LimitPolicy = "queue"
	// LimitPolicyReject rejects the trigger with CONCURRENCY_LIMIT_EXCEEDED
	LimitPolicyReject LimitPolicy = "reject"
)

// ExecPolicy holds the concurrency, timeout, and retry configuration of a flow
type ExecPolicy struct {
	// MaxConcurrentExecutions bounds simultaneous runs of this flow (0 = 1)
	MaxConcurrentExecutions int `json:"max_concurrent_executions,omitempty" yaml:"max_concurrent_executions,omitempty"`
	// TimeoutSeconds bounds the whole execution (0 = engine default)
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	// NodeTimeoutSeconds bounds a single agent invocation (0 = engine default)
	NodeTimeoutSeconds int `json:"node_timeout_seconds,omitempty" yaml:"node_timeout_seconds,omitempty"`
	// RetryOnFailure enables the retry policy for failed node invocations
	RetryOnFailure bool `json:"retry_on_failure,omitempty" yaml:"retry_on_failure,omitempty"`
	// RetryCount is the number of additional attempts after the first failure
	RetryCount int `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
	// OnLimitExceeded selects queue or reject admission (default queue)
	OnLimitExceeded LimitPolicy `json:"on_limit_exceeded,omitempty" yaml:"on_limit_exceeded,omitempty"`
	// FailFastActions promotes integration action failures to node failures
	FailFastActions bool `json:"fail_fast_actions,omitempty" yaml:"fail_fast_actions,omitempty"`
}

// Position is presentation-only diagram metadata, ignored by the engine
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node represents a single step in a flow
type Node struct {
	// ID is the unique identifier within the definition
	ID string `json:"id" yaml:"id"`
	// Type specifies the node type
	Type NodeType `json:"type" yaml:"type"`
	// AgentRef identifies the agent that owns the skill (agent nodes)
	AgentRef string `json:"agent_ref,omitempty" yaml:"agent_ref,omitempty"`
	// Skill is the skill to invoke on the agent (agent nodes)
	Skill string `json:"skill,omitempty" yaml:"skill,omitempty"`
	// Input is the input template, resolved before invocation
	Input string `json:"input,omitempty" yaml:"input,omitempty"`
	// Agentic configures the integration actions around this node
	Agentic *AgenticConfig `json:"agentic_config,omitempty" yaml:"agentic_config,omitempty"`
	// Position is diagram metadata, never interpreted
	Position *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// Edge is a directed, optionally conditional transition between two nodes
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	// Condition is evaluated against {result, context}; empty means always fires
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Definition is an immutable, versioned flow graph
type Definition struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Version     int        `json:"version" yaml:"version"`
	Status      FlowStatus `json:"status" yaml:"status"`
	Nodes       []Node     `json:"nodes" yaml:"nodes"`
	Edges       []Edge     `json:"edges" yaml:"edges"`
	Config      ExecPolicy `json:"config" yaml:"config"`
}

// NodeByID retrieves a node by id
func (d *Definition) NodeByID(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing returns the outgoing edges of a node in declaration order
func (d *Definition) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the incoming edges of a node in declaration order
func (d *Definition) Incoming(nodeID string) []Edge {
	var in []Edge
	for _, e := range d.Edges {
		if e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// EntryNodes returns the ids of nodes with no incoming edges
func (d *Definition) EntryNodes() []string {
	hasIncoming := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		hasIncoming[e.To] = true
	}
	var entries []string
	for _, n := range d.Nodes {
		if !hasIncoming[n.ID] {
			entries = append(entries, n.ID)
		}
	}
	return entries
}

// MaxConcurrent returns the effective concurrency bound (at least 1)
func (p ExecPolicy) MaxConcurrent() int64 {
	if p.MaxConcurrentExecutions <= 0 {
		return 1
	}
	return int64(p.MaxConcurrentExecutions)
}

// MaxAttempts returns the total invocation attempts for a node (first try
// plus retries when retry_on_failure is set)
func (p ExecPolicy) MaxAttempts() int {
	if !p.RetryOnFailure || p.RetryCount <= 0 {
		return 1
	}
	return 1 + p.RetryCount
}

// DefinitionFromJSON parses and validates a flow definition from JSON
func DefinitionFromJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// DefinitionFromYAML parses and validates a flow definition from YAML
func DefinitionFromYAML(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ToJSON serializes the definition as indented JSON
func (d *Definition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal flow definition: %w", err)
	}
	return string(data), nil
}

// ToYAML serializes the definition as YAML
func (d *Definition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal flow definition: %w", err)
	}
	return string(data), nil
}
