// Package gemini adapts Google's Gemini API (google.golang.org/genai) to the
// llm.Provider contract. It is the only backend that receives the uploaded
// document as an inline multimodal part instead of extracted text.
package gemini
