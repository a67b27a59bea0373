// Package redact scrubs credentials and other sensitive fragments from strings
// before they are logged, stored as job errors, or returned to API clients.
// LLM backends echo request details in their errors, so provider API keys
// are matched explicitly in addition to generic secrets.
package redact

import (
	"regexp"
	"strings"
)

// Placeholders substituted for redacted fragments.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
	// keep, when set, spares a match. loc is the submatch index slice.
	keep func(s string, loc []int) bool
}

// rules apply in order. Provider keys go first so the generic key rule
// never sees them, and JWTs go before the bearer rule so a bearer JWT is
// reported as a JWT.
var rules = []rule{
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`), RedactedKeyPlaceholder, nil},
	{regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder, nil},
	{regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder, nil},

	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|db|database)://[^@\s]+@`), RedactedCredentialPlaceholder, nil},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder, nil},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)([A-Za-z0-9_\-.~+/]{16,})`), RedactedKeyPlaceholder, plainWord},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), RedactedKeyPlaceholder, nil},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]", nil},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{8,}=*`), RedactedCredentialPlaceholder, nil},

	// Local paths reveal where uploads and checkpoints live.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder, inURL},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder, nil},

	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]", nil},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]", nil},
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"]+)?`), "[REDACTED_SQL]", nil},
}

// String returns input with every sensitive fragment replaced.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		if r.keep == nil {
			input = r.pattern.ReplaceAllString(input, r.placeholder)
			continue
		}
		input = replaceUnkept(input, r)
	}
	return input
}

func replaceUnkept(s string, r rule) string {
	locs := r.pattern.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if r.keep(s, loc) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(r.placeholder)
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// plainWord spares key-like assignments whose value has no digit, such as
// "API key provided".
func plainWord(s string, loc []int) bool {
	return !strings.ContainsAny(s[loc[6]:loc[7]], "0123456789")
}

// inURL spares paths that belong to a URL, such as an endpoint in a
// transport error.
func inURL(s string, loc []int) bool {
	start := strings.LastIndexAny(s[:loc[0]], " \t\n\"'(<") + 1
	return strings.Contains(s[start:loc[1]], "://")
}

// Error redacts err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
