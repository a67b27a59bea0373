// Package providers wires the backend adapters into an llm.Registry and
// resolves which provider and credentials a generation should use.
package providers
