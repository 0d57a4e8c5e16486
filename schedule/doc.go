// Package schedule loads the static GTFS tables into an immutable
// in-memory store indexed for reconciliation queries.
//
// Loading is tolerant: malformed rows are skipped and counted, never fatal.
// After Load returns, the store is read-only and safe for unsynchronized
// concurrent reads.
package schedule
