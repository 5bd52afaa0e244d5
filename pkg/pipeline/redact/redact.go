package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" and the registry's "socapi <token>" scheme.
	schemeTokenRe = regexp.MustCompile(`(?i)\b(Bearer|socapi)\s+[^\s"']+`)

	// Common key=value / header formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(x[_-]?api[_-]?key|api[_-]?key|soc[_-]?api[_-]?key|x[_-]?authorization|token)\b\s*[:=]\s*[^\s"',]+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = schemeTokenRe.ReplaceAllString(out, "$1 <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	return strings.TrimSpace(out)
}

// Value replaces every occurrence of a known secret value, then applies Secrets.
func Value(s, secret string) string {
	if secret = strings.TrimSpace(secret); secret != "" {
		s = strings.ReplaceAll(s, secret, "<redacted>")
	}
	return Secrets(s)
}
