// Package ollama adapts a local Ollama server, reached through its
// OpenAI-compatible /v1 endpoint, to the llm.Provider contract.
package ollama
