// Package stores provides persistence layer implementations for OpsForge.
// It includes SQLite-based storage with WAL mode, connection pooling,
// the asset inventory queries behind target resolution, and execution
// history for completed plan runs.
package stores
