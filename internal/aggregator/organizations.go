package aggregator

import "strings"

// UnknownOrganization is returned when no substring pattern matches.
const UnknownOrganization = "Unknown"

type organization struct {
	name     string
	patterns []string
}

// Attribution is best-effort; substring tables beat nothing, but nobody
// should treat the result as authoritative.
var organizations = []organization{
	{name: "Google", patterns: []string{"google-analytics", "doubleclick", "googletagmanager", "googlesyndication"}},
	{name: "Facebook", patterns: []string{"facebook", "fbcdn", "fbsbx"}},
	{name: "Amazon", patterns: []string{"amazon-adsystem", "amazonpay"}},
	{name: "Microsoft", patterns: []string{"bing", "msn", "live.com"}},
	{name: "Twitter", patterns: []string{"twitter", "t.co"}},
	{name: "Adobe", patterns: []string{"adobe", "omtrdc"}},
	{name: "Oracle", patterns: []string{"bluekai", "eloqua"}},
	{name: "Salesforce", patterns: []string{"salesforce", "pardot"}},
}

// IdentifyOrganization returns the first organization whose known
// substrings appear anywhere in the lowercased domain.
func IdentifyOrganization(domain string) string {
	lowered := strings.ToLower(domain)
	for _, org := range organizations {
		for _, pattern := range org.patterns {
			if strings.Contains(lowered, pattern) {
				return org.name
			}
		}
	}
	return UnknownOrganization
}
