// Package openai adapts OpenAI-compatible chat completion APIs to the
// llm.Provider contract. It serves the hosted OpenAI API and LiteLLM
// proxies, and exports Complete for other OpenAI-compatible backends.
package openai
