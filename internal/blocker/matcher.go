package blocker

import (
	"fmt"
	"regexp"
)

// trackingCookiePatterns covers the naming conventions of the common
// analytics and advertising cookies. Entries match anywhere in the name.
var trackingCookiePatterns = []string{
	".*_ga.*", // Google Analytics
	".*_gid.*",
	".*_gat.*",
	".*fbp.*", // Facebook
	".*fbm.*",
	".*_fbq.*",
	".*doubleclick.*",
	".*adsystem.*",
	".*scorecard.*",
	".*adnxs.*",
	".*pubmatic.*",
	".*rubiconproject.*",
	".*criteo.*",
	".*outbrain.*",
	".*taboola.*",
}

type compiledPattern struct {
	raw string
	re  *regexp.Regexp
}

// Matcher evaluates an ordered list of patterns against a value. Patterns
// are case-insensitive and anchored at the start of the value but need not
// consume all of it, so the pattern `_ga` matches the cookie name `_ga123`.
type Matcher struct {
	patterns []compiledPattern
}

// NewMatcher compiles the patterns once, preserving list order.
func NewMatcher(patterns []string) (*Matcher, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, raw := range patterns {
		re, err := regexp.Compile("(?i)^(?:" + raw + ")")
		if err != nil {
			return nil, fmt.Errorf("blocker: compile pattern %q: %w", raw, err)
		}
		compiled = append(compiled, compiledPattern{raw: raw, re: re})
	}
	return &Matcher{patterns: compiled}, nil
}

// NewCookieMatcher builds the fixed tracking-cookie-name matcher.
func NewCookieMatcher() *Matcher {
	m, err := NewMatcher(trackingCookiePatterns)
	if err != nil {
		// The built-in list is static; failing to compile it is a
		// programming error.
		panic(err)
	}
	return m
}

// Match returns the first pattern (in list order) matching the value.
func (m *Matcher) Match(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	for _, p := range m.patterns {
		if p.re.MatchString(value) {
			return p.raw, true
		}
	}
	return "", false
}
