// Package catalog persists image and folder records in SQLite behind a
// load/save-shaped API.
//
// The whole catalog is treated as one document: Load materializes every
// record, Save replaces everything inside a single transaction, and Update
// serializes load-modify-save cycles behind a mutex so concurrent mutations
// never lose each other's writes. Callers (the asset pipeline) express every
// mutation as an Update closure over the in-memory Catalog.
//
// Schema changes bump the version in schema.go; the database is recreated
// from schema.sql when absent.
package catalog
