package mediator

import (
	"context"
	"net/url"
	"strings"

	"flock/internal/blocker"
	"flock/internal/config"
	"flock/internal/database"

	"github.com/charmbracelet/log"
)

const sharedBlocklistReason = "shared_blocklist"

// SharedBlocklist is the sync-client surface the mediator consults before
// running the local engine. A nil implementation means standalone mode.
type SharedBlocklist interface {
	IsBlocked(domain string) bool
	Report(domain, method string, confidence float64, context map[string]string)
}

// Mediator drives the decision engine for each flow the proxy runtime
// hands over. Every internal failure degrades to allow: the surrounding
// proxy must keep forwarding traffic no matter what breaks in here.
type Mediator struct {
	engine *blocker.Engine
	shared SharedBlocklist
}

func New(engine *blocker.Engine, shared SharedBlocklist) *Mediator {
	return &Mediator{engine: engine, shared: shared}
}

// OnRequest classifies the outbound flow. A blocked domain or address
// kills the flow outright; otherwise tracking cookies are stripped from
// the Cookie header and the request is logged.
func (m *Mediator) OnRequest(f Flow) {
	ctx := context.Background()
	cfg := config.GetConfig()

	domain := extractDomain(f.URL())
	ip := f.ServerIP()

	if m.shared != nil && m.shared.IsBlocked(domain) {
		log.Warn("BLOCKED by shared blocklist", "domain", domain)
		m.logRequest(ctx, f, domain, ip, true, sharedBlocklistReason)
		f.Kill()
		return
	}

	if cfg.Blocking.AutoBlock {
		verdict := m.classifyRequest(ctx, domain, ip)
		if verdict.Block {
			log.Warn("BLOCKED", "method", f.Method(), "url", f.URL(), "reason", verdict.Reason)
			m.logRequest(ctx, f, domain, ip, true, verdict.Reason)
			if verdict.AutoBlocked {
				m.report(domain, "domain", map[string]string{"reason": verdict.Reason})
			}
			f.Kill()
			return
		}
	}

	m.filterRequestCookies(ctx, f, domain, ip)

	if cfg.Database.LogRequests {
		m.logRequest(ctx, f, domain, ip, false, "")
	}
}

// OnResponse strips tracking Set-Cookie headers. Survivors keep their
// exact header values and original order.
func (m *Mediator) OnResponse(f Flow) {
	ctx := context.Background()

	domain := extractDomain(f.URL())
	ip := f.ServerIP()

	headers := f.ResponseHeader().Values("Set-Cookie")
	if len(headers) == 0 {
		return
	}
	instances := append([]string(nil), headers...)

	cfg := config.GetConfig()
	blocked := make(map[int]bool, len(instances))

	for i, instance := range instances {
		name, value := setCookieName(instance)
		if name == "" {
			continue
		}

		verdict, err := m.engine.ClassifyCookie(ctx, name, domain, ip)
		if err != nil {
			log.Warn("cookie classification failed, allowing", "cookie", name, "error", err)
			verdict = blocker.Verdict{}
		}

		if cfg.Cookies.LogAttempts {
			if err := database.LogCookie(ctx, domain, name, value, ip, f.URL(), verdict.Block); err != nil {
				log.Warn("cookie audit write failed", "error", err)
			}
		}

		if verdict.Block {
			blocked[i] = true
		}
		if verdict.AutoBlocked {
			m.report(domain, "cookie", map[string]string{"cookie_name": name})
		}
	}

	if len(blocked) == 0 {
		return
	}

	header := f.ResponseHeader()
	header.Del("Set-Cookie")
	for i, instance := range instances {
		if !blocked[i] {
			header.Add("Set-Cookie", instance)
		}
	}
	log.Info("blocked Set-Cookie headers", "domain", domain, "count", len(blocked))
}

// classifyRequest runs domain then address classification. When both fire
// the domain reason wins.
func (m *Mediator) classifyRequest(ctx context.Context, domain, ip string) blocker.Verdict {
	domainVerdict, err := m.engine.ClassifyDomain(ctx, domain)
	if err != nil {
		log.Warn("domain classification failed, allowing", "domain", domain, "error", err)
		domainVerdict = blocker.Verdict{}
	}

	ipVerdict, err := m.engine.ClassifyIP(ctx, ip, domain)
	if err != nil {
		log.Warn("address classification failed, allowing", "ip", ip, "error", err)
		ipVerdict = blocker.Verdict{}
	}

	if domainVerdict.Block {
		return domainVerdict
	}
	return ipVerdict
}

func (m *Mediator) filterRequestCookies(ctx context.Context, f Flow, domain, ip string) {
	cfg := config.GetConfig()

	header := f.RequestHeader().Get("Cookie")
	pairs := parseCookieHeader(header)
	if len(pairs) == 0 {
		return
	}

	survivors := make([]cookiePair, 0, len(pairs))
	blockedCount := 0

	for _, pair := range pairs {
		verdict, err := m.engine.ClassifyCookie(ctx, pair.name, domain, ip)
		if err != nil {
			log.Warn("cookie classification failed, allowing", "cookie", pair.name, "error", err)
			verdict = blocker.Verdict{}
		}

		if cfg.Cookies.LogAttempts {
			if err := database.LogCookie(ctx, domain, pair.name, pair.value, ip, f.URL(), verdict.Block); err != nil {
				log.Warn("cookie audit write failed", "error", err)
			}
		}

		if verdict.Block {
			blockedCount++
			if verdict.AutoBlocked {
				m.report(domain, "cookie", map[string]string{"cookie_name": pair.name})
			}
			continue
		}
		survivors = append(survivors, pair)
	}

	if blockedCount == 0 {
		return
	}

	if len(survivors) == 0 {
		f.RequestHeader().Del("Cookie")
	} else {
		f.RequestHeader().Set("Cookie", formatCookieHeader(survivors))
	}
	log.Info("blocked cookies", "domain", domain, "count", blockedCount)
}

func (m *Mediator) logRequest(ctx context.Context, f Flow, domain, ip string, blocked bool, reason string) {
	if err := database.LogRequest(ctx, f.Method(), f.URL(), domain, ip, blocked, reason); err != nil {
		log.Warn("request audit write failed", "error", err)
	}
}

// report forwards a confirmed discovery to the network, when connected.
func (m *Mediator) report(domain, method string, context map[string]string) {
	if m.shared == nil {
		return
	}
	confidence := config.GetConfig().Network.ReportConfidence
	m.shared.Report(domain, method, confidence, context)
}

// extractDomain pulls the hostname out of a URL, falling back to the first
// path segment for scheme-less values.
func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		if host := parsed.Hostname(); host != "" {
			return host
		}
		if parsed.Path != "" {
			return strings.SplitN(parsed.Path, "/", 2)[0]
		}
	}
	return rawURL
}
