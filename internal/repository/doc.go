// Package repository defines the data access interfaces for the lightspeed pipeline.
//
// The store holds three system-of-record tables (observability, inventory,
// ipam), the unified lightspeed_asset table produced by joining them, and a
// small pipeline_run history. The implementation is in the sqlstore
// subpackage.
//
// # Replace Semantics
//
// Stage outputs are never merged with earlier runs. Every write replaces the
// affected tables wholesale inside one transaction, so a re-run with the same
// seed produces identical tables.
//
// # Drivers
//
// sqlstore runs on SQLite (modernc.org/sqlite, the default, file or
// ":memory:") or MySQL (go-sql-driver/mysql). The DDL sticks to types both
// understand. MySQL commits DDL implicitly, so a failed replace there can leave
// an empty table behind; SQLite rolls it back.
//
// # Testing
//
// The sqlstore tests run against in-memory SQLite databases.
package repository
