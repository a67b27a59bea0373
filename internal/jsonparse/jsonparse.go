// Package jsonparse recovers JSON values from model output that is wrapped
// in prose, fenced as markdown, or written in a relaxed object syntax.
package jsonparse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidJSON is wrapped by every parse failure.
var ErrInvalidJSON = errors.New("failed to parse JSON from model response")

// snippetLen bounds how much of the raw text an error message carries.
const snippetLen = 300

var (
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// Extract returns the canonical JSON encoding of the first value it can
// recover from text. Repairs are attempted from safest to most aggressive:
// markdown fences are stripped, then the text is decoded strictly, then the
// outermost object or array is cut out, then trailing commas are dropped,
// and finally bare keys are quoted. Every stage also tries a relaxed decode
// that accepts single-quoted strings.
func Extract(text string) (json.RawMessage, error) {
	text = stripFences(text)

	if raw, ok := try(text); ok {
		return raw, nil
	}

	if sub, ok := outermost(text); ok {
		if raw, ok := try(sub); ok {
			return raw, nil
		}
		text = sub
	}

	fixed := trailingComma.ReplaceAllString(text, "$1")
	if raw, ok := try(fixed); ok {
		return raw, nil
	}

	quoted := bareKey.ReplaceAllString(fixed, `$1"$2":`)
	if raw, ok := try(quoted); ok {
		return raw, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, snippet(text))
}

// Decode extracts a value from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return nil
}

// DecodeObject is Decode for struct targets. When the model wrapped the
// object in an array, the first element is used.
func DecodeObject(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		if len(items) == 0 || !isObject(items[0]) {
			return fmt.Errorf("%w: expected an object, got an array without one", ErrInvalidJSON)
		}
		raw = items[0]
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = text[len("```json"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// try accepts strict JSON first, then a relaxed object or array literal.
// Bare scalars are rejected so that prose never parses as a YAML string.
func try(text string) (json.RawMessage, bool) {
	if text == "" {
		return nil, false
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), true
	}

	if c := text[0]; c != '{' && c != '[' {
		return nil, false
	}
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// outermost cuts from the first opening brace or bracket to the last
// matching closer.
func outermost(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	return text[:snippetLen] + "..."
}
