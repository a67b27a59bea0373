// Package generation connects the document services to the retry engine.
//
// A Generator resolves which provider serves a request (including "auto"
// detection), builds it through the llm registry with credentials from the
// providers resolver, adapts the document to what the provider can read,
// and runs the request through the shared llm.Engine. Multimodal providers
// receive the raw document as an attachment; text-only providers receive
// the extracted text ahead of the prompt.
package generation
