// Package handlers 提供 VakaFlow HTTP API 的请求处理器。
package handlers
