// Package store declares the persistence contract for generation jobs and
// the sentinel errors every implementation returns. The in-memory and
// PostgreSQL stores both satisfy JobStore.
package store
