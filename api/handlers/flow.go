package handlers

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vakaflow-ai/vakaflow/api"
	"github.com/vakaflow-ai/vakaflow/flow"
	"github.com/vakaflow-ai/vakaflow/types"
)

// maxDefinitionBytes bounds uploaded flow documents
const maxDefinitionBytes = 1 << 20

// =============================================================================
// Flow Management Handler
// =============================================================================

// FlowHandler serves the flow definition endpoints
type FlowHandler struct {
	store  flow.Store
	logger *zap.Logger
}

// NewFlowHandler creates a flow handler
func NewFlowHandler(store flow.Store, logger *zap.Logger) *FlowHandler {
	return &FlowHandler{
		store:  store,
		logger: logger.With(zap.String("component", "flow_handler")),
	}
}

// HandleCreateFlow saves a flow definition. The body is a JSON document by
// default; YAML is accepted with a yaml content type.
// @Router /v1/flows [post]
func (h *FlowHandler) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	def, err := h.readDefinition(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.store.Put(r.Context(), def); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteCreated(w, api.FlowSummary{
		ID:        def.ID,
		Name:      def.Name,
		Version:   def.Version,
		Status:    def.Status,
		NodeCount: len(def.Nodes),
	})
}

// HandleValidateFlow validates a definition without saving it
// @Router /v1/flows/validate [post]
func (h *FlowHandler) HandleValidateFlow(w http.ResponseWriter, r *http.Request) {
	def, err := h.readDefinition(r)
	if err == nil {
		err = flow.Validate(def)
	}
	if err != nil {
		if e, ok := types.AsError(err); ok && e.Code == types.ErrValidation {
			WriteSuccess(w, api.ValidateResponse{Valid: false, Error: e.Message})
			return
		}
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.ValidateResponse{Valid: true})
}

// HandleListFlows lists stored flow definitions
// @Router /v1/flows [get]
func (h *FlowHandler) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.List(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	result := make([]api.FlowSummary, 0, len(defs))
	for _, def := range defs {
		result = append(result, api.FlowSummary{
			ID:        def.ID,
			Name:      def.Name,
			Version:   def.Version,
			Status:    def.Status,
			NodeCount: len(def.Nodes),
		})
	}
	WriteSuccess(w, result)
}

// HandleGetFlow returns one full flow definition
// @Router /v1/flows/{id} [get]
func (h *FlowHandler) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "flow id is required", h.logger)
		return
	}
	def, err := h.store.Get(r.Context(), id)
	if err != nil {
		WriteError(w, types.NewErrorf(types.ErrFlowNotFound, "flow not found: %s", id).
			WithHTTPStatus(http.StatusNotFound).WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, def)
}

// readDefinition decodes the request body into a definition, by content type
func (h *FlowHandler) readDefinition(r *http.Request) (*flow.Definition, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDefinitionBytes))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to read request body").
			WithHTTPStatus(http.StatusBadRequest).WithCause(err)
	}
	if len(body) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "request body is empty").
			WithHTTPStatus(http.StatusBadRequest)
	}

	ct := r.Header.Get("Content-Type")
	var def *flow.Definition
	if strings.Contains(ct, "yaml") {
		def, err = flow.DefinitionFromYAML(body)
	} else {
		def, err = flow.DefinitionFromJSON(body)
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}
