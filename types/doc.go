// Package types contains shared types used across the VakaFlow engine:
// the unified error taxonomy and error helpers.
package types
