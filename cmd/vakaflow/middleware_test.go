package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRecoveryMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	handler := Recovery(zap.NewNop())(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/flows", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestChainOrderAndStatusCapture(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, Recovery(zap.NewNop()), RequestLogger(zap.NewNop()))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/v1/flows", "/v1/flows"},
		{"/v1/flows/validate", "/v1/flows/validate"},
		{"/v1/flows/vendor-review", "/v1/flows/:id"},
		{"/v1/flows/vendor-review/execute", "/v1/flows/:id/execute"},
		{"/v1/flows/vendor-review/executions", "/v1/flows/:id/executions"},
		{"/v1/executions/0f1d2c3b", "/v1/executions/:id"},
		{"/v1/executions/0f1d2c3b/retry", "/v1/executions/:id/retry"},
		{"/v1/executions/0f1d2c3b/cancel", "/v1/executions/:id/cancel"},
		{"/unknown", "/unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path), "path %s", tt.path)
	}
}
