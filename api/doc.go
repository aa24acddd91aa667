// Package api defines the request and response types of the VakaFlow HTTP
// API.
package api
