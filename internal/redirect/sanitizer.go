// Package redirect turns untrusted "return here after auth" values into safe
// same-origin relative paths.
//
// Only a path starting with exactly one "/" and free of backslashes and line breaks is
// accepted; everything else, including gate routes such as /setup, resolves to "/".
package redirect

import (
	"net/url"
	"strings"
	"unicode"

	liststrings "whozin/pkg/platform/strings"
)

// Root is the fallback for every rejected or absent target.
const Root = "/"

// QueryParam is the query parameter carrying a redirect target between pages.
const QueryParam = "redirect"

// DefaultExcludedPrefixes lists the gate routes that redirect back through the auth gate.
var DefaultExcludedPrefixes = []string{"/setup"}

// Reason explains why a target was replaced by Root.
type Reason string

const (
	ReasonAccepted         Reason = ""
	ReasonEmpty            Reason = "empty"
	ReasonNotRelative      Reason = "not_relative"
	ReasonProtocolRelative Reason = "protocol_relative"
	ReasonControlCharacter Reason = "control_character"
	ReasonExcludedPrefix   Reason = "excluded_prefix"
)

// Policy sanitizes redirect targets against a fixed set of excluded gate prefixes.
// A Policy is immutable and safe for concurrent use.
type Policy struct {
	excluded []string
}

// NewPolicy builds a policy excluding the given prefixes. Blank, duplicate and
// non-absolute entries are dropped.
func NewPolicy(excludedPrefixes ...string) *Policy {
	cleaned := liststrings.DedupeAndTrim(excludedPrefixes)
	excluded := make([]string, 0, len(cleaned))
	for _, p := range cleaned {
		if strings.HasPrefix(p, "/") && p != Root {
			excluded = append(excluded, p)
		}
	}
	return &Policy{excluded: excluded}
}

// DefaultPolicy excludes DefaultExcludedPrefixes.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultExcludedPrefixes...)
}

// ExcludedPrefixes returns a copy of the configured gate prefixes.
func (p *Policy) ExcludedPrefixes() []string {
	return append([]string(nil), p.excluded...)
}

// Sanitize returns input trimmed if it is a safe relative path, otherwise Root.
func (p *Policy) Sanitize(input string) string {
	target, _ := p.Evaluate(input)
	return target
}

// Evaluate is Sanitize plus the reason a target was rejected.
// Accepted targets report ReasonAccepted.
func (p *Policy) Evaluate(input string) (string, Reason) {
	candidate := strings.TrimFunc(input, isTrimmable)
	if candidate == "" {
		return Root, ReasonEmpty
	}
	if !strings.HasPrefix(candidate, "/") {
		return Root, ReasonNotRelative
	}
	if strings.HasPrefix(candidate, "//") {
		return Root, ReasonProtocolRelative
	}
	if strings.ContainsAny(candidate, "\\\r\n") {
		return Root, ReasonControlCharacter
	}
	for _, prefix := range p.excluded {
		if strings.HasPrefix(candidate, prefix) {
			return Root, ReasonExcludedPrefix
		}
	}
	return candidate, ReasonAccepted
}

// isTrimmable matches edge whitespace, including the byte order mark.
func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// GateURL builds the location of a gate page that should send the user back to
// currentPath once they pass it, e.g. GateURL("/setup", "/event/9") returns
// "/setup?redirect=%2Fevent%2F9".
func (p *Policy) GateURL(gatePath, currentPath string) string {
	return gatePath + "?" + QueryParam + "=" + url.QueryEscape(p.Sanitize(currentPath))
}

var defaultPolicy = DefaultPolicy()

// Sanitize applies the default policy.
func Sanitize(input string) string {
	return defaultPolicy.Sanitize(input)
}
