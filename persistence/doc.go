// Package persistence provides the storage backends for flow definitions and
// execution records: a gorm-backed implementation for sqlite, postgres, and
// mysql, plus an in-memory implementation for tests and development.
package persistence
