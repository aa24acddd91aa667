package flow

import (
	"github.com/vakaflow-ai/vakaflow/types"
)

// Validate checks the structural integrity of a flow definition: node id
// uniqueness, edge referential integrity, and acyclicity. Loop-capable nodes
// are not supported; any cycle is rejected. A failed check returns a
// *types.Error with code VALIDATION and the definition never reaches
// execution.
func Validate(def *Definition) error {
	if def == nil {
		return types.NewError(types.ErrValidation, "flow definition is nil")
	}
	if len(def.Nodes) == 0 {
		return types.NewError(types.ErrValidation, "flow has no nodes")
	}

	ids := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.ID == "" {
			return types.NewError(types.ErrValidation, "node id must not be empty")
		}
		if ids[n.ID] {
			return types.NewErrorf(types.ErrValidation, "duplicate node id: %s", n.ID)
		}
		ids[n.ID] = true

		switch n.Type {
		case NodeTypeAgent:
			if n.AgentRef == "" || n.Skill == "" {
				return types.NewErrorf(types.ErrValidation,
					"agent node %s requires agent_ref and skill", n.ID)
			}
		case NodeTypeAction, NodeTypeTerminal:
			// no extra requirements
		default:
			return types.NewErrorf(types.ErrValidation, "node %s has unknown type: %s", n.ID, n.Type)
		}

		if err := validateAgentic(n.ID, n.Agentic); err != nil {
			return err
		}
	}

	for _, e := range def.Edges {
		if !ids[e.From] {
			return types.NewErrorf(types.ErrValidation, "edge references unknown node: %s", e.From)
		}
		if !ids[e.To] {
			return types.NewErrorf(types.ErrValidation, "edge references unknown node: %s", e.To)
		}
		if e.From == e.To {
			return types.NewErrorf(types.ErrValidation, "edge forms a self-loop on node: %s", e.From)
		}
	}

	if len(def.EntryNodes()) == 0 {
		return types.NewError(types.ErrValidation, "flow has no entry node (every node has incoming edges)")
	}

	if hasCycle(def) {
		return types.NewError(types.ErrValidation, "flow graph contains a cycle; loop nodes are not supported")
	}

	return nil
}

func validateAgentic(nodeID string, cfg *AgenticConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.Email != nil {
		switch cfg.Email.SendOn {
		case SendOnBefore, SendOnAfter, SendOnBoth, SendOnError:
		default:
			return types.NewErrorf(types.ErrValidation,
				"node %s email config has invalid send_on: %s", nodeID, cfg.Email.SendOn)
		}
		for _, r := range cfg.Email.Recipients {
			switch r.Type {
			case RecipientUser, RecipientVendor, RecipientCustom:
			default:
				return types.NewErrorf(types.ErrValidation,
					"node %s email recipient has invalid type: %s", nodeID, r.Type)
			}
		}
	}
	if cfg.CollectData != nil {
		for _, s := range cfg.CollectData.Sources {
			switch s.MergeStrategy {
			case MergeReplace, MergeDeep, MergeAppend, "":
			default:
				return types.NewErrorf(types.ErrValidation,
					"node %s collect source has invalid merge_strategy: %s", nodeID, s.MergeStrategy)
			}
		}
	}
	return nil
}

// hasCycle runs Kahn's topological sort and reports whether any node could
// not be ordered.
func hasCycle(def *Definition) bool {
	inDegree := make(map[string]int, len(def.Nodes))
	for _, n := range def.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range def.Edges {
		inDegree[e.To]++
	}

	var queue []string
	for _, n := range def.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	ordered := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered++
		for _, e := range def.Outgoing(id) {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}

	return ordered != len(def.Nodes)
}
