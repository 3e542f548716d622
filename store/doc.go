// Package store persists scored leads. The SQLite-backed implementation is
// the default; LeadStore is an interface so the pipeline stage can be tested
// against an in-memory double.
package store
