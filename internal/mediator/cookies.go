package mediator

import "strings"

// cookiePair is one name=value entry from a Cookie header.
type cookiePair struct {
	name  string
	value string
}

// parseCookieHeader splits a Cookie header into pairs. A pair is split on
// the first '='; entries without '=' are malformed and skipped. Values are
// kept verbatim, truncation is a logging concern only.
func parseCookieHeader(header string) []cookiePair {
	if header == "" {
		return nil
	}

	parts := strings.Split(header, ";")
	pairs := make([]cookiePair, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		pairs = append(pairs, cookiePair{name: name, value: value})
	}
	return pairs
}

// formatCookieHeader reassembles surviving pairs in their original order.
func formatCookieHeader(pairs []cookiePair) string {
	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		parts = append(parts, pair.name+"="+pair.value)
	}
	return strings.Join(parts, "; ")
}

// setCookieName extracts the cookie name and bare value from one
// Set-Cookie header instance. The header text itself is never rewritten;
// survivors are re-added byte for byte.
func setCookieName(header string) (string, string) {
	name, rest, found := strings.Cut(header, "=")
	if !found {
		return strings.TrimSpace(header), ""
	}
	value := rest
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(name), value
}
