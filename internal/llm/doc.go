// Package llm defines the provider contract and the retry/fallback engine
// shared by every LLM backend.
//
// A Provider performs exactly one model invocation per Call and classifies its
// own failures into an ErrorAction. The Engine walks keys and models with a
// Cursor, spaces repeated use of a model with the Smart Delay policy, and
// observes a cancellation Checker before every call and every sleep.
package llm
