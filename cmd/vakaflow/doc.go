// vakaflow 是流程执行引擎的服务入口，提供流程管理与执行的 HTTP API、
// 健康检查和 Prometheus 指标。
package main
