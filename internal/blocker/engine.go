package blocker

import (
	"context"
	"fmt"

	"flock/internal/config"
	"flock/internal/database"

	"github.com/charmbracelet/log"
)

const (
	ReasonDatabaseBlocklist = "database_blocklist"
	ReasonAllCookiesBlocked = "all_cookies_blocked"

	categoryPatternMatch  = "pattern-match"
	categoryCookieTracker = "cookie-tracker"
)

// Verdict is one block/allow decision. AutoBlocked is set when this exact
// decision pushed the subject's hit counter over the promotion threshold,
// so the caller can propagate the discovery.
type Verdict struct {
	Block       bool
	Reason      string
	AutoBlocked bool
}

var allow = Verdict{}

// Engine combines the whitelist, the decision store, and the pattern
// matchers into per-subject verdicts. Matchers are compiled once at
// construction; thresholds and flags are read live from the config.
type Engine struct {
	domains *Matcher
	cookies *Matcher
}

func NewEngine(blockPatterns []string) (*Engine, error) {
	domains, err := NewMatcher(blockPatterns)
	if err != nil {
		return nil, err
	}
	return &Engine{
		domains: domains,
		cookies: NewCookieMatcher(),
	}, nil
}

// ClassifyDomain decides whether requests to the domain should be blocked.
func (e *Engine) ClassifyDomain(ctx context.Context, domainName string) (Verdict, error) {
	whitelisted, err := database.IsWhitelisted(ctx, domainName)
	if err != nil {
		return allow, err
	}
	if whitelisted {
		log.Debug("domain is whitelisted", "domain", domainName)
		return allow, nil
	}

	blocked, err := database.IsDomainBlocked(ctx, domainName)
	if err != nil {
		return allow, err
	}
	if blocked {
		return Verdict{Block: true, Reason: ReasonDatabaseBlocklist}, nil
	}

	if pattern, ok := e.domains.Match(domainName); ok {
		threshold := config.GetConfig().Blocking.AutoBlockThreshold
		_, promoted, err := database.UpsertTrackingDomain(ctx, domainName, categoryPatternMatch, threshold)
		if err != nil {
			return allow, err
		}
		log.Debug("domain matches block pattern", "domain", domainName, "pattern", pattern)
		return Verdict{Block: true, Reason: fmt.Sprintf("pattern:%s", pattern), AutoBlocked: promoted}, nil
	}

	return allow, nil
}

// ClassifyIP decides whether the server address should be blocked. The
// owning domain is consulted for the whitelist override only.
func (e *Engine) ClassifyIP(ctx context.Context, ip, domainName string) (Verdict, error) {
	if ip == "" || isLocalAddress(ip) {
		return allow, nil
	}

	whitelisted, err := database.IsWhitelisted(ctx, domainName)
	if err != nil {
		return allow, err
	}
	if whitelisted {
		return allow, nil
	}

	blocked, err := database.IsIPBlocked(ctx, ip)
	if err != nil {
		return allow, err
	}
	if blocked {
		return Verdict{Block: true, Reason: ReasonDatabaseBlocklist}, nil
	}

	if pattern, ok := e.domains.Match(ip); ok {
		threshold := config.GetConfig().Blocking.AutoBlockThreshold
		_, promoted, err := database.UpsertTrackingIP(ctx, ip, domainName, categoryPatternMatch, threshold)
		if err != nil {
			return allow, err
		}
		return Verdict{Block: true, Reason: fmt.Sprintf("pattern:%s", pattern), AutoBlocked: promoted}, nil
	}

	return allow, nil
}

// ClassifyCookie decides whether the named cookie should be stripped from
// traffic to the domain. When block_all is set every non-whitelisted cookie
// is blocked outright and pattern matching is skipped. A blocked cookie
// confirms the domain (and address, when known) as a tracker, feeding the
// promotion counters.
func (e *Engine) ClassifyCookie(ctx context.Context, cookieName, domainName, ip string) (Verdict, error) {
	whitelisted, err := database.IsWhitelisted(ctx, domainName)
	if err != nil {
		return allow, err
	}
	if whitelisted {
		log.Debug("domain is whitelisted, allowing cookie", "domain", domainName, "cookie", cookieName)
		return allow, nil
	}

	cfg := config.GetConfig()

	verdict := allow
	if cfg.Cookies.BlockAll {
		verdict = Verdict{Block: true, Reason: ReasonAllCookiesBlocked}
	} else if pattern, ok := e.cookies.Match(cookieName); ok {
		log.Debug("cookie matches tracking pattern", "cookie", cookieName, "pattern", pattern)
		verdict = Verdict{Block: true, Reason: fmt.Sprintf("pattern:%s", pattern)}
	}

	if verdict.Block && cfg.Cookies.AutoBlockTrackers {
		threshold := cfg.Blocking.AutoBlockThreshold
		_, promoted, err := database.UpsertTrackingDomain(ctx, domainName, categoryCookieTracker, threshold)
		if err != nil {
			return verdict, err
		}
		verdict.AutoBlocked = promoted

		if ip != "" && !isLocalAddress(ip) {
			if _, _, err := database.UpsertTrackingIP(ctx, ip, domainName, categoryCookieTracker, threshold); err != nil {
				return verdict, err
			}
		}
	}

	return verdict, nil
}

func isLocalAddress(ip string) bool {
	switch ip {
	case "127.0.0.1", "::1", "localhost":
		return true
	}
	return false
}
