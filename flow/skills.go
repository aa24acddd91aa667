package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// HTTPSkillExecutorConfig configures the gateway-backed skill executor
type HTTPSkillExecutorConfig struct {
	// GatewayURL is the base URL of the agent gateway
	GatewayURL string `yaml:"gateway_url" json:"gateway_url"`
	// Timeout bounds one skill invocation at the transport level
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// HTTPSkillExecutor invokes agent skills over an HTTP agent gateway:
// POST {gateway}/agents/{agent_ref}/skills/{skill} with the resolved input,
// expecting a JSON object back.
type HTTPSkillExecutor struct {
	base   string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSkillExecutor creates a gateway-backed skill executor
func NewHTTPSkillExecutor(cfg HTTPSkillExecutorConfig, logger *zap.Logger) *HTTPSkillExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSkillExecutor{
		base:   cfg.GatewayURL,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "skill_executor")),
	}
}

type skillRequest struct {
	Input string `json:"input"`
}

// ExecuteSkill posts the input to the gateway and decodes the JSON result
func (e *HTTPSkillExecutor) ExecuteSkill(ctx context.Context, agentRef, skill, input string) (map[string]any, error) {
	if e.base == "" {
		return nil, fmt.Errorf("agent gateway url is not configured")
	}

	endpoint := fmt.Sprintf("%s/agents/%s/skills/%s",
		e.base, url.PathEscape(agentRef), url.PathEscape(skill))
	body, err := json.Marshal(skillRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("encode skill request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build skill request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call skill %s/%s: %w", agentRef, skill, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read skill response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("skill %s/%s returned status %d", agentRef, skill, resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		// Non-object results are wrapped so downstream references still work
		return map[string]any{"output": string(data)}, nil
	}
	return out, nil
}

// StaticDirectory resolves user and vendor recipients from a fixed table,
// keyed by recipient type then id. Suits configuration-driven deployments
// where the contact universe is known up front.
type StaticDirectory struct {
	contacts map[RecipientType]map[string]string
}

// NewStaticDirectory creates a directory from a contact table
func NewStaticDirectory(contacts map[RecipientType]map[string]string) *StaticDirectory {
	if contacts == nil {
		contacts = map[RecipientType]map[string]string{}
	}
	return &StaticDirectory{contacts: contacts}
}

// ResolveContact returns the address registered for a recipient
func (d *StaticDirectory) ResolveContact(_ context.Context, typ RecipientType, id string) (string, error) {
	byID, ok := d.contacts[typ]
	if !ok {
		return "", fmt.Errorf("no contacts registered for type %s", typ)
	}
	addr, ok := byID[id]
	if !ok {
		return "", fmt.Errorf("unknown %s contact: %s", typ, id)
	}
	return addr, nil
}
