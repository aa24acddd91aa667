package flow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vakaflow-ai/vakaflow/types"
)

// AgentInvoker executes a node's agent skill with resolved input. The engine
// treats the underlying capability as a black box and maps its failure modes
// (network error, application error, timeout) into a uniform tagged error.
type AgentInvoker interface {
	Invoke(ctx context.Context, node *Node, input string) (map[string]any, error)
}

// SkillInvoker adapts an external SkillExecutor to the AgentInvoker
// contract.
type SkillInvoker struct {
	executor SkillExecutor
	logger   *zap.Logger
}

// NewSkillInvoker creates the default invoker over a skill executor
func NewSkillInvoker(executor SkillExecutor, logger *zap.Logger) *SkillInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SkillInvoker{
		executor: executor,
		logger:   logger.With(zap.String("component", "skill_invoker")),
	}
}

// Invoke calls the agent skill and maps failures into the engine taxonomy:
// context deadline → TIMEOUT (retryable), everything else → NODE_EXECUTION.
func (s *SkillInvoker) Invoke(ctx context.Context, node *Node, input string) (map[string]any, error) {
	if s.executor == nil {
		return nil, types.NewError(types.ErrNodeExecution, "no skill executor configured").WithNodeID(node.ID)
	}

	start := time.Now()
	out, err := s.executor.ExecuteSkill(ctx, node.AgentRef, node.Skill, input)
	duration := time.Since(start)

	if err != nil {
		kind := types.ErrNodeExecution
		msg := "skill execution failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = types.ErrTimeout
			msg = "skill execution timed out"
		}
		s.logger.Warn("skill invocation failed",
			zap.String("node_id", node.ID),
			zap.String("agent_ref", node.AgentRef),
			zap.String("skill", node.Skill),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, types.NewError(kind, msg).WithNodeID(node.ID).WithRetryable(true).WithCause(err)
	}

	s.logger.Debug("skill invocation completed",
		zap.String("node_id", node.ID),
		zap.String("agent_ref", node.AgentRef),
		zap.String("skill", node.Skill),
		zap.Duration("duration", duration),
	)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
