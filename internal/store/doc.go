// Package store persists media identities, motion events, evidentiary
// snapshots, the relink audit trail, and the outbound sync queue in SQLite.
//
// Each table is reached through a typed repository (Assets, Events,
// Snapshots, LinkLog, SyncQueue). Repositories obtained from a Tx share its
// transaction, so multi-table writes such as "relink plus audit row plus
// outbox row" commit or roll back together. The read-only query surface used
// by the CLI (timeline, gallery, counts) lives in queries.go.
//
// The store is append-only: nothing in this package deletes rows. Schema
// changes bump schemaVersion; older databases are rejected with
// ErrSchemaMismatch rather than migrated in place.
package store
