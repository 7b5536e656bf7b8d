// Package sqlite provides SQLite implementations of the storage interfaces
// defined in the internal/store package, using the pure-Go modernc.org/sqlite
// driver. It is the default backend for single-host deployments.
package sqlite
