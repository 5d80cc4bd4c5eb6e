// Package sqlite implements a persistent SQLite-backed archive store for
// evicted context. It uses modernc.org/sqlite (pure Go, no CGO) with WAL
// mode and idempotent schema migration.
package sqlite
