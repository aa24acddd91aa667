package flow

import (
	"context"
	"fmt"

	"dario.cat/mergo"
	"go.uber.org/zap"
)

// ActionPhase marks when an integration action runs relative to the node's
// own execution
type ActionPhase string

const (
	// PhaseBefore runs before the agent invocation
	PhaseBefore ActionPhase = "before"
	// PhaseAfter runs only if the node reached a non-error terminal state
	PhaseAfter ActionPhase = "after"
	// PhaseError runs only if the node failed after exhausting retries
	PhaseError ActionPhase = "error"
)

// ContextPatch is one collected value waiting to be merged into the
// execution context. Patches are produced in source declaration order so
// merge results are deterministic.
type ContextPatch struct {
	Key      string
	Strategy MergeStrategy
	Value    any
}

// Dispatcher performs the three side-effecting action kinds configured per
// node: email notification, data push, and data collection. Failures of
// individual recipients, targets, or sources are collected and reported,
// never thrown; an action failure aborts nothing unless the flow opts into
// fail-fast action semantics (decided by the orchestrator).
type Dispatcher struct {
	directory ContactDirectory
	mailer    Mailer
	transport Transport
	logger    *zap.Logger
}

// NewDispatcher creates an action dispatcher. Any collaborator may be nil;
// actions needing a missing collaborator fail softly and are recorded.
func NewDispatcher(directory ContactDirectory, mailer Mailer, transport Transport, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		directory: directory,
		mailer:    mailer,
		transport: transport,
		logger:    logger.With(zap.String("component", "action_dispatcher")),
	}
}

// DispatchBefore runs the before-phase actions: data collection (so the
// node's input template can see the collected context) and before/both
// emails. It returns the context patches to apply plus any action errors.
func (d *Dispatcher) DispatchBefore(ctx context.Context, node *Node, scope *Scope) ([]ContextPatch, []ActionError) {
	cfg := node.Agentic
	if cfg == nil {
		return nil, nil
	}
	var errs []ActionError
	var patches []ContextPatch

	if cfg.CollectData != nil {
		patches = d.collect(ctx, node, cfg.CollectData, &errs)
	}
	if cfg.Email != nil && cfg.Email.sendsIn(PhaseBefore) {
		d.sendEmails(ctx, node, cfg.Email, scope, PhaseBefore, &errs)
	}
	return patches, errs
}

// DispatchAfter runs the after-phase actions: after/both emails and data
// pushes. The scope must be snapshotted after the node's output was recorded.
func (d *Dispatcher) DispatchAfter(ctx context.Context, node *Node, scope *Scope) []ActionError {
	cfg := node.Agentic
	if cfg == nil {
		return nil
	}
	var errs []ActionError

	if cfg.Email != nil && cfg.Email.sendsIn(PhaseAfter) {
		d.sendEmails(ctx, node, cfg.Email, scope, PhaseAfter, &errs)
	}
	if cfg.PushData != nil {
		d.push(ctx, node, cfg.PushData, scope, &errs)
	}
	return errs
}

// DispatchError runs the error-phase actions after a node exhausted its
// retries.
func (d *Dispatcher) DispatchError(ctx context.Context, node *Node, scope *Scope) []ActionError {
	cfg := node.Agentic
	if cfg == nil || cfg.Email == nil || !cfg.Email.sendsIn(PhaseError) {
		return nil
	}
	var errs []ActionError
	d.sendEmails(ctx, node, cfg.Email, scope, PhaseError, &errs)
	return errs
}

// ============================================================
// Email
// ============================================================

func (d *Dispatcher) sendEmails(ctx context.Context, node *Node, cfg *EmailConfig, scope *Scope, phase ActionPhase, errs *[]ActionError) {
	subject := Resolve(cfg.Subject, scope)
	body := Resolve(cfg.Body, scope)

	if cfg.IncludeResult && phase != PhaseBefore {
		if out := scope.LookupString("result." + node.ID); out != "" {
			body = body + "\n\n" + out
		}
	}

	for _, rcpt := range cfg.Recipients {
		addr, err := d.resolveRecipient(ctx, rcpt, scope)
		if err != nil {
			d.recordActionError(node, phase, "email", fmt.Sprintf("resolve recipient %s/%s: %v", rcpt.Type, rcpt.Value, err), errs)
			continue
		}
		if d.mailer == nil {
			d.recordActionError(node, phase, "email", "no mailer configured", errs)
			continue
		}
		if err := d.mailer.Send(ctx, addr, subject, body); err != nil {
			d.recordActionError(node, phase, "email", fmt.Sprintf("send to %s: %v", addr, err), errs)
			continue
		}
		d.logger.Debug("email dispatched",
			zap.String("node_id", node.ID),
			zap.String("phase", string(phase)),
			zap.String("to", addr),
		)
	}
}

// resolveRecipient turns a recipient spec into a concrete address. Custom
// recipients use the resolved value as a literal address; user and vendor
// recipients resolve the id through the contact directory.
func (d *Dispatcher) resolveRecipient(ctx context.Context, rcpt Recipient, scope *Scope) (string, error) {
	value := Resolve(rcpt.Value, scope)
	if value == "" {
		return "", fmt.Errorf("recipient value resolved to empty")
	}
	if rcpt.Type == RecipientCustom {
		return value, nil
	}
	if d.directory == nil {
		return "", fmt.Errorf("no contact directory configured")
	}
	addr, err := d.directory.ResolveContact(ctx, rcpt.Type, value)
	if err != nil {
		return "", err
	}
	if addr == "" {
		return "", fmt.Errorf("directory returned empty address for %s", value)
	}
	return addr, nil
}

// ============================================================
// Push data
// ============================================================

func (d *Dispatcher) push(ctx context.Context, node *Node, cfg *PushDataConfig, scope *Scope, errs *[]ActionError) {
	for i, target := range cfg.Targets {
		payload := make(map[string]any, len(target.DataMapping))
		for field, tpl := range target.DataMapping {
			// Single-reference mappings keep their typed value; composite
			// templates render to strings.
			if path, ok := singleReference(tpl); ok {
				v, _ := scope.Lookup(path)
				payload[field] = v
			} else {
				payload[field] = Resolve(tpl, scope)
			}
		}

		if d.transport == nil {
			d.recordActionError(node, PhaseAfter, "push_data", "no transport configured", errs)
			continue
		}
		if err := d.transport.Push(ctx, target, payload); err != nil {
			d.recordActionError(node, PhaseAfter, "push_data",
				fmt.Sprintf("target %d (%s): %v", i, target.Type, err), errs)
			continue
		}
		d.logger.Debug("data pushed",
			zap.String("node_id", node.ID),
			zap.String("target_type", string(target.Type)),
			zap.String("endpoint", target.Endpoint),
		)
	}
}

// singleReference reports whether the template is exactly one ${...} marker
func singleReference(tpl string) (string, bool) {
	m := refPattern.FindStringSubmatch(tpl)
	if m != nil && m[0] == tpl {
		return m[1], true
	}
	return "", false
}

// ============================================================
// Collect data
// ============================================================

func (d *Dispatcher) collect(ctx context.Context, node *Node, cfg *CollectDataConfig, errs *[]ActionError) []ContextPatch {
	var patches []ContextPatch
	for i, source := range cfg.Sources {
		if d.transport == nil {
			d.recordActionError(node, PhaseBefore, "collect_data", "no transport configured", errs)
			continue
		}
		value, err := d.transport.Fetch(ctx, source)
		if err != nil {
			d.recordActionError(node, PhaseBefore, "collect_data",
				fmt.Sprintf("source %d (%s): %v", i, source.Type, err), errs)
			continue
		}
		key := source.Key
		if key == "" {
			key = fmt.Sprintf("%s_%d", source.Type, i)
		}
		patches = append(patches, ContextPatch{Key: key, Strategy: source.MergeStrategy, Value: value})
	}
	return patches
}

// ApplyPatches merges collected values into the execution context in
// declaration order. The caller must hold the record lock.
func ApplyPatches(execCtx map[string]any, patches []ContextPatch) {
	for _, p := range patches {
		execCtx[p.Key] = MergeValue(execCtx[p.Key], p.Value, p.Strategy)
	}
}

// MergeValue combines a fetched value with the existing context value under
// the declared strategy:
//
//   - replace: the fetched value fully overwrites the existing key
//   - merge: field-wise deep merge, fetched values win at the leaf level,
//     non-overlapping keys from both sides are preserved
//   - append: concatenates onto an existing sequence, or creates a
//     single-element sequence when the key is absent
func MergeValue(existing, fetched any, strategy MergeStrategy) any {
	switch strategy {
	case MergeDeep:
		dst, dok := existing.(map[string]any)
		src, sok := fetched.(map[string]any)
		if !dok || !sok {
			return fetched
		}
		merged := make(map[string]any, len(dst))
		for k, v := range dst {
			merged[k] = v
		}
		if err := mergo.Merge(&merged, src, mergo.WithOverride); err != nil {
			return fetched
		}
		return merged

	case MergeAppend:
		items := toSequence(fetched)
		switch ex := existing.(type) {
		case nil:
			return items
		case []any:
			return append(append([]any{}, ex...), items...)
		default:
			return append([]any{ex}, items...)
		}

	default: // replace
		return fetched
	}
}

func toSequence(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}

func (d *Dispatcher) recordActionError(node *Node, phase ActionPhase, action, detail string, errs *[]ActionError) {
	d.logger.Warn("integration action failed",
		zap.String("node_id", node.ID),
		zap.String("phase", string(phase)),
		zap.String("action", action),
		zap.String("detail", detail),
	)
	*errs = append(*errs, ActionError{Phase: phase, Action: action, Detail: detail})
}
