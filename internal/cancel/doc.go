// Package cancel provides cooperative cancellation for long-running
// generation work.
//
// A Signal is process-wide: it combines an atomic in-memory flag with a
// marker file, so a request made by another process (or by an operator
// touching the file) is observed by every worker. A Token scopes
// cancellation to a single job while still honouring its parent Signal.
package cancel
