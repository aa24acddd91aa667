package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vakaflow-ai/vakaflow/flow"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollectorWithRegisterer("vakaflow_test", prometheus.NewRegistry(), zap.NewNop())
}

func TestExecutionLifecycle(t *testing.T) {
	c := newTestCollector(t)

	c.ExecutionStarted("flow-1")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executionsInFlight.WithLabelValues("flow-1")))

	c.ExecutionFinished("flow-1", flow.ExecStatusCompleted, 250*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.executionsInFlight.WithLabelValues("flow-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("flow-1", "completed")))
}

func TestNodeAttempt(t *testing.T) {
	c := newTestCollector(t)

	c.NodeAttempt("flow-1", "node-a", true, 10*time.Millisecond)
	c.NodeAttempt("flow-1", "node-a", false, 10*time.Millisecond)
	c.NodeAttempt("flow-1", "node-a", false, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodeAttemptsTotal.WithLabelValues("flow-1", "node-a", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.nodeAttemptsTotal.WithLabelValues("flow-1", "node-a", "failure")))
}

func TestActionFailuresAndAdmission(t *testing.T) {
	c := newTestCollector(t)

	c.ActionFailures("flow-1", 3)
	c.AdmissionRejected("flow-1")

	assert.Equal(t, 3.0, testutil.ToFloat64(c.actionFailuresTotal.WithLabelValues("flow-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.admissionRejected.WithLabelValues("flow-1")))
}

func TestHTTPStatusLabel(t *testing.T) {
	c := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/v1/flows", 201, 5*time.Millisecond)
	c.RecordHTTPRequest("GET", "/v1/flows", 404, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/flows", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/v1/flows", "4xx")))
}
