// Package memory provides in-process implementations of store.JobStore and
// task.TaskStore. They back the server when no database URL is configured
// and the CLI's one-shot runs. Nothing survives a restart.
package memory
