// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vakaflow-ai/vakaflow/flow"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 流程引擎指标收集器，实现 flow.Metrics
type Collector struct {
	// 执行指标
	executionsTotal    *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	executionsInFlight *prometheus.GaugeVec
	admissionRejected  *prometheus.CounterVec

	// 节点指标
	nodeAttemptsTotal   *prometheus.CounterVec
	nodeAttemptDuration *prometheus.HistogramVec

	// 集成动作指标
	actionFailuresTotal *prometheus.CounterVec

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到默认注册表
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return newCollector(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegisterer 创建指标收集器并注册到指定注册表（测试用）
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	return newCollector(namespace, reg, logger)
}

func newCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 执行指标
	c.executionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of flow executions by terminal status",
		},
		[]string{"flow_id", "status"},
	)

	c.executionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Flow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"flow_id"},
	)

	c.executionsInFlight = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Number of currently running flow executions",
		},
		[]string{"flow_id"},
	)

	c.admissionRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejected_total",
			Help:      "Executions rejected at the per-flow concurrency limit",
		},
		[]string{"flow_id"},
	)

	// 节点指标
	c.nodeAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_attempts_total",
			Help:      "Total number of node invocation attempts",
		},
		[]string{"flow_id", "node_id", "status"},
	)

	c.nodeAttemptDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_attempt_duration_seconds",
			Help:      "Node invocation attempt duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"flow_id", "node_id"},
	)

	// 集成动作指标
	c.actionFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_failures_total",
			Help:      "Total number of integration action failures",
		},
		[]string{"flow_id"},
	)

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// =============================================================================
// 🎯 flow.Metrics 实现
// =============================================================================

// ExecutionStarted 记录一次执行开始
func (c *Collector) ExecutionStarted(flowID string) {
	c.executionsInFlight.WithLabelValues(flowID).Inc()
}

// ExecutionFinished 记录一次执行结束
func (c *Collector) ExecutionFinished(flowID string, status flow.ExecutionStatus, duration time.Duration) {
	c.executionsInFlight.WithLabelValues(flowID).Dec()
	c.executionsTotal.WithLabelValues(flowID, string(status)).Inc()
	c.executionDuration.WithLabelValues(flowID).Observe(duration.Seconds())
}

// NodeAttempt 记录一次节点调用尝试
func (c *Collector) NodeAttempt(flowID, nodeID string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.nodeAttemptsTotal.WithLabelValues(flowID, nodeID, status).Inc()
	c.nodeAttemptDuration.WithLabelValues(flowID, nodeID).Observe(duration.Seconds())
}

// ActionFailures 记录集成动作失败次数
func (c *Collector) ActionFailures(flowID string, count int) {
	c.actionFailuresTotal.WithLabelValues(flowID).Add(float64(count))
}

// AdmissionRejected 记录一次并发上限拒绝
func (c *Collector) AdmissionRejected(flowID string) {
	c.admissionRejected.WithLabelValues(flowID).Inc()
}

// =============================================================================
// 🌐 HTTP 指标
// =============================================================================

// RecordHTTPRequest 记录一次 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, httpStatusLabel(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
