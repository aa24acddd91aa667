package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vakaflow-ai/vakaflow/api"
	"github.com/vakaflow-ai/vakaflow/flow"
	"github.com/vakaflow-ai/vakaflow/types"
)

// =============================================================================
// Execution Handler
// =============================================================================

// ExecutionHandler serves the execution endpoints
type ExecutionHandler struct {
	orchestrator *flow.Orchestrator
	logger       *zap.Logger
}

// NewExecutionHandler creates an execution handler
func NewExecutionHandler(orchestrator *flow.Orchestrator, logger *zap.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		orchestrator: orchestrator,
		logger:       logger.With(zap.String("component", "execution_handler")),
	}
}

// HandleExecuteFlow admits one run of a flow and returns its execution id.
// The run proceeds asynchronously; poll the execution endpoint for progress.
// @Router /v1/flows/{id}/execute [post]
func (h *ExecutionHandler) HandleExecuteFlow(w http.ResponseWriter, r *http.Request) {
	flowID := r.PathValue("id")
	if flowID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "flow id is required", h.logger)
		return
	}

	var req api.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid request body", h.logger)
		return
	}

	execID, err := h.orchestrator.Execute(r.Context(), flowID, flow.Trigger{
		ContextID:   req.ContextID,
		ContextType: req.ContextType,
		TriggerData: req.TriggerData,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteAccepted(w, api.ExecuteResponse{ExecutionID: execID, Status: flow.ExecStatusPending})
}

// HandleGetExecution returns the full execution record
// @Router /v1/executions/{id} [get]
func (h *ExecutionHandler) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orchestrator.GetExecution(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, rec)
}

// HandleRetryExecution starts a new attempt chain for a failed execution
// @Router /v1/executions/{id}/retry [post]
func (h *ExecutionHandler) HandleRetryExecution(w http.ResponseWriter, r *http.Request) {
	execID, err := h.orchestrator.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteAccepted(w, api.ExecuteResponse{ExecutionID: execID, Status: flow.ExecStatusPending})
}

// HandleCancelExecution requests cooperative cancellation of a running
// execution
// @Router /v1/executions/{id}/cancel [post]
func (h *ExecutionHandler) HandleCancelExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Cancel(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"status": "cancellation_requested"})
}

// HandleListExecutions returns the execution history of one flow
// @Router /v1/flows/{id}/executions [get]
func (h *ExecutionHandler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := flow.ListFilter{FlowID: r.PathValue("id")}
	if filter.FlowID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "flow id is required", h.logger)
		return
	}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		filter.Status = flow.ExecutionStatus(s)
	}
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "since must be RFC3339", h.logger)
			return
		}
		filter.Start = t
	}
	if s := q.Get("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "until must be RFC3339", h.logger)
			return
		}
		filter.End = t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		filter.Limit = n
	}

	recs, err := h.orchestrator.ListExecutions(r.Context(), filter)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	result := make([]api.ExecutionSummary, 0, len(recs))
	for _, rec := range recs {
		result = append(result, api.NewExecutionSummary(rec))
	}
	WriteSuccess(w, result)
}
