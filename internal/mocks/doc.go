// Package mocks provides shared test doubles for interfaces used across
// packages.
//
// MockProvider implements llm.Provider with scripted per-key, per-model
// responses and records every call. MockJWTService implements
// auth.JWTService with overridable functions and canned results.
//
// Package-local mocks built on testify/mock stay next to the tests that use
// them; this package holds only the doubles needed by more than one
// package.
package mocks
