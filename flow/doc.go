// Package flow implements a declarative automation engine over directed
// acyclic graphs. A flow definition names agent-skill nodes and conditional
// edges; the orchestrator walks the graph breadth-first, resolves ${result.*}
// and ${context.*} references in node inputs, dispatches the integration
// actions configured around each node, and writes a durable execution record
// ahead of every state transition so failed runs can be retried from the
// failure point.
package flow
