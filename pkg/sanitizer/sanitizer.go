package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reKeepLettersDigits = regexp.MustCompile(`[^0-9\p{L}]+`)
	reTrimUnderscores   = regexp.MustCompile(`_+`)
	reMultiSlash        = regexp.MustCompile(`/+`)
)

func trimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func collapseUnderscores(s string) string {
	s = reTrimUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// TrimAndNormalize trims s and collapses every whitespace run into a
// single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		result.WriteRune(r)
		lastWasSpace = false
	}
	return result.String()
}

// SanitizeSessionType turns "Follow-up  Call" into "follow_up_call".
func SanitizeSessionType(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersDigits.ReplaceAllString(s, "_") },
		collapseUnderscores,
	}
	return p.Apply(input)
}

// SanitizeTimezone cleans separators only; IANA names are case sensitive.
func SanitizeTimezone(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		func(s string) string { return reMultiSlash.ReplaceAllString(s, "/") },
		func(s string) string { return reTrimUnderscores.ReplaceAllString(s, "_") },
		func(s string) string { return strings.Trim(s, "/") },
	}
	return p.Apply(input)
}

func SanitizeID(input string) string {
	return strings.TrimSpace(input)
}
