package api

import (
	"time"

	"github.com/vakaflow-ai/vakaflow/flow"
)

// =============================================================================
// 流程管理类型
// =============================================================================

// FlowSummary 是列表接口返回的流程摘要
type FlowSummary struct {
	// 流程 ID
	ID string `json:"id"`
	// 名称
	Name string `json:"name"`
	// 版本号
	Version int `json:"version"`
	// 状态
	Status flow.FlowStatus `json:"status"`
	// 节点数量
	NodeCount int `json:"node_count"`
}

// ValidateResponse 流程校验结果
type ValidateResponse struct {
	// 是否通过校验
	Valid bool `json:"valid"`
	// 未通过时的原因
	Error string `json:"error,omitempty"`
}

// =============================================================================
// 执行类型
// =============================================================================

// ExecuteRequest 触发一次流程执行
type ExecuteRequest struct {
	// 业务上下文 ID（如供应商评估单号）
	ContextID string `json:"context_id,omitempty"`
	// 业务上下文类型
	ContextType string `json:"context_type,omitempty"`
	// 触发时附带的数据，注入 ${context.trigger_data}
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// ExecuteResponse 执行受理结果
type ExecuteResponse struct {
	// 新建执行记录的 ID
	ExecutionID string `json:"execution_id"`
	// 受理时的状态
	Status flow.ExecutionStatus `json:"status"`
}

// ExecutionSummary 是历史列表返回的执行摘要
type ExecutionSummary struct {
	ID          string               `json:"id"`
	FlowID      string               `json:"flow_id"`
	FlowVersion int                  `json:"flow_version"`
	Status      flow.ExecutionStatus `json:"status"`
	Error       string               `json:"error,omitempty"`
	RetryOf     string               `json:"retry_of,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewExecutionSummary 从执行记录生成摘要
func NewExecutionSummary(rec *flow.ExecutionRecord) ExecutionSummary {
	return ExecutionSummary{
		ID:          rec.ID,
		FlowID:      rec.FlowID,
		FlowVersion: rec.FlowVersion,
		Status:      rec.Status,
		Error:       rec.Error,
		RetryOf:     rec.RetryOf,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}
