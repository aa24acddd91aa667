package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vakaflow-ai/vakaflow/types"
)

func TestHTTPTransportPush(t *testing.T) {
	var gotMethod string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{})
	err := tr.Push(context.Background(), Target{
		Type:     TargetWebhook,
		Endpoint: srv.URL,
	}, map[string]any{"score": float64(87)})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, map[string]any{"score": float64(87)}, gotPayload)

	// explicit method is honored
	err = tr.Push(context.Background(), Target{
		Type: TargetAPI, Endpoint: srv.URL, Method: http.MethodPut,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestHTTPTransportPushErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{})

	err := tr.Push(context.Background(), Target{Type: TargetWebhook, Endpoint: srv.URL}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrIntegrationAction, types.GetErrorCode(err))

	// unsupported target types need a managed-connection transport
	err = tr.Push(context.Background(), Target{Type: TargetMCP, ConnectionID: "c1"}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrIntegrationAction, types.GetErrorCode(err))

	err = tr.Push(context.Background(), Target{Type: TargetWebhook}, nil)
	assert.Error(t, err)
}

func TestHTTPTransportFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tier":"gold","active":true}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{})
	v, err := tr.Fetch(context.Background(), Source{Type: SourceAPI, Endpoint: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tier": "gold", "active": true}, v)
}

func TestHTTPTransportFetchNonJSONKeptAsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("name,tier\nacme,gold"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{})
	v, err := tr.Fetch(context.Background(), Source{Type: SourceAPI, Endpoint: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "name,tier\nacme,gold", v)
}

func TestHTTPTransportFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPTransportConfig{})

	_, err := tr.Fetch(context.Background(), Source{Type: SourceAPI, Endpoint: srv.URL})
	require.Error(t, err)
	assert.Equal(t, types.ErrIntegrationAction, types.GetErrorCode(err))

	_, err = tr.Fetch(context.Background(), Source{Type: SourceRAG, ConnectionID: "kb"})
	require.Error(t, err)
	assert.Equal(t, types.ErrIntegrationAction, types.GetErrorCode(err))

	_, err = tr.Fetch(context.Background(), Source{Type: SourceAPI})
	assert.Error(t, err)
}
