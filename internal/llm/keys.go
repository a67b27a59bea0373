package llm

import "strings"

// DedupeKeys trims whitespace, drops blank entries and removes duplicates
// while preserving first-seen order.
func DedupeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// MaskKey renders a credential for logs, keeping only its last four
// characters. Keyless slots render as "<none>".
func MaskKey(key string) string {
	switch {
	case key == "":
		return "<none>"
	case strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://"):
		// Local backends use the endpoint URL as their key slot.
		return key
	case len(key) <= 4:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}
