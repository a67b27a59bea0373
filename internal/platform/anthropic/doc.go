// Package anthropic adapts the Anthropic Messages API to the llm.Provider
// contract.
package anthropic
