// Package sqlite provides durable client-side storage backed by SQLite.
//
// It implements driven.ClientSettingStore: per-machine settings that never
// replicate, stored as JSON-encoded strings keyed by "namespace.key".
//
// The database opens in WAL mode and migrates its schema from embedded SQL
// files on startup.
package sqlite
