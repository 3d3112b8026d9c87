// Package storage is the SQLite persistence layer for site content, media,
// contact messages, admin sessions and the audit log.
//
// All SQL is hand-written; the schema lives in migrations.sql and is applied
// idempotently on Open. Localized fields are stored as <col>_en / <col>_ar
// pairs and timestamps as unix milliseconds.
package storage
