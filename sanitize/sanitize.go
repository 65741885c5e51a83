// Package sanitize scrubs handler error text before it is stored or logged.
//
// A message that looks like it carries a credential or a connection string
// is replaced as a whole by Redacted. Anything else is truncated to
// MaxLength runes.
package sanitize

import (
	"regexp"
	"unicode/utf8"
)

const (
	// Redacted replaces any message that matches a sensitive pattern.
	Redacted = "internal error"

	// MaxLength is the longest message kept, in runes, including the
	// truncation marker.
	MaxLength = 500

	// TruncationMarker is appended to truncated messages.
	TruncationMarker = "...[truncated]"
)

var sensitive = []*regexp.Regexp{
	regexp.MustCompile(`(?i)passw(or)?d`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)(access|refresh|api|auth)[_\- ]?token`),
	regexp.MustCompile(`(?i)\btoken\s*[=:]`),
	regexp.MustCompile(`(?i)api[_\- ]?key`),
	regexp.MustCompile(`(?i)authorization`),
	regexp.MustCompile(`(?i)\bbearer\s`),
	regexp.MustCompile(`(?i)credential`),
	regexp.MustCompile(`(?i)(private|access)[_\- ]?key`),
	regexp.MustCompile(`(?i)postgres(ql)?://`),
	regexp.MustCompile(`(?i)mysql://`),
	regexp.MustCompile(`(?i)mongodb(\+srv)?://`),
	regexp.MustCompile(`(?i)rediss?://`),
	regexp.MustCompile(`(?i)amqps?://`),
}

// IsSensitive reports whether s matches any sensitive pattern.
func IsSensitive(s string) bool {
	for _, re := range sensitive {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Message returns s redacted or truncated.
func Message(s string) string {
	if IsSensitive(s) {
		return Redacted
	}
	if utf8.RuneCountInString(s) <= MaxLength {
		return s
	}
	keep := MaxLength - utf8.RuneCountInString(TruncationMarker)
	runes := []rune(s)
	return string(runes[:keep]) + TruncationMarker
}

// Error returns the sanitized text of err, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Message(err.Error())
}
