package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vakaflow-ai/vakaflow/types"
)

// ============================================================
// Collaborator interfaces
// The engine orchestrates these capabilities, it never owns them.
// ============================================================

// SkillExecutor executes an agent skill with resolved input and returns a
// structured result. Implemented by the external agent runtime.
type SkillExecutor interface {
	ExecuteSkill(ctx context.Context, agentRef, skill, input string) (map[string]any, error)
}

// ContactDirectory resolves user and vendor ids to contact email addresses.
type ContactDirectory interface {
	ResolveContact(ctx context.Context, recipientType RecipientType, id string) (string, error)
}

// Mailer delivers a single message. Transport mechanics (SMTP, provider
// APIs) are outside the engine.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Transport moves data to push targets and from collect sources. Webhook and
// api types are served by HTTPTransport; mcp/database/rag/file types require
// a managed-connection implementation injected by the host.
type Transport interface {
	Push(ctx context.Context, target Target, payload map[string]any) error
	Fetch(ctx context.Context, source Source) (any, error)
}

// ============================================================
// Default HTTP transport
// ============================================================

// HTTPTransport serves webhook and api targets/sources over plain HTTP with
// a shared outbound rate limit.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPTransportConfig configures the default transport
type HTTPTransportConfig struct {
	// Timeout bounds a single transport call
	Timeout time.Duration
	// RequestsPerSecond bounds outbound calls across all targets (0 = 10)
	RequestsPerSecond float64
	// Burst is the rate limiter burst size (0 = 5)
	Burst int
}

// NewHTTPTransport creates the default webhook/api transport
func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &HTTPTransport{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Push delivers the rendered payload to a webhook/api target
func (t *HTTPTransport) Push(ctx context.Context, target Target, payload map[string]any) error {
	switch target.Type {
	case TargetWebhook, TargetAPI:
	default:
		return types.NewErrorf(types.ErrIntegrationAction,
			"no transport for push target type: %s", target.Type)
	}
	if target.Endpoint == "" {
		return types.NewError(types.ErrIntegrationAction, "push target has no endpoint")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	method := target.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, target.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrIntegrationAction, "push target call failed").WithCause(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return types.NewErrorf(types.ErrIntegrationAction,
			"push target returned status %d", resp.StatusCode)
	}
	return nil
}

// Fetch reads JSON data from an api source
func (t *HTTPTransport) Fetch(ctx context.Context, source Source) (any, error) {
	if source.Type != SourceAPI {
		return nil, types.NewErrorf(types.ErrIntegrationAction,
			"no transport for collect source type: %s", source.Type)
	}
	if source.Endpoint == "" {
		return nil, types.NewError(types.ErrIntegrationAction, "collect source has no endpoint")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrIntegrationAction, "collect source call failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, types.NewErrorf(types.ErrIntegrationAction,
			"collect source returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read fetch response: %w", err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		// Non-JSON payloads are kept as raw text
		return string(data), nil
	}
	return value, nil
}
