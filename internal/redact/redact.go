// Package redact masks secret-looking substrings before text leaves the machine.
package redact

import (
	"regexp"
)

// Placeholder replaces every masked secret
const Placeholder = "[REDACTED]"

// pattern pairs a secret shape with its replacement. Replacements may reference
// capture groups so that the key of an assignment survives and only the value is masked.
type pattern struct {
	re   *regexp.Regexp
	repl string
}

var patterns = []pattern{
	// PEM blocks first so the base64 body is not partially matched by other rules
	{regexp.MustCompile(`-----BEGIN [A-Z0-9 ]+-----[\s\S]*?-----END [A-Z0-9 ]+-----`), Placeholder},
	// no leading word boundary: a key glued to an identifier (OPENAI_KEY_sk-...) still matches
	{regexp.MustCompile(`sk[-_][A-Za-z0-9_-]{20,}`), Placeholder},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}\b`), Placeholder},
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}\b`), Placeholder},
	{regexp.MustCompile(`xox[abprs]-[A-Za-z0-9-]{10,}`), Placeholder},
	{regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]{20,}`), "${1} " + Placeholder},
	{regexp.MustCompile(`(?i)\b(password|passwd|secret|token|api[_-]?key)(\s*[:=]\s*)["']?[^\s"',;]{8,}["']?`), "${1}${2}" + Placeholder},
}

// String returns s with every recognized secret replaced by Placeholder.
// Text without a match is returned unchanged.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, p := range patterns {
		if p.re.MatchString(s) {
			s = p.re.ReplaceAllString(s, p.repl)
		}
	}
	return s
}

// Func is the shape the sync engine consumes; String satisfies it.
type Func func(string) string

// None leaves text untouched, used when redaction is disabled in config
func None(s string) string { return s }

// Value redacts the string leaves of a decoded JSON value with String.
func Value(v interface{}) interface{} {
	return Func(String).Value(v)
}

// Value applies f to the string leaves of a decoded JSON value.
// Maps and slices are copied; the input is never mutated.
func (f Func) Value(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return f(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = f.Value(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = f.Value(item)
		}
		return out
	default:
		return v
	}
}
