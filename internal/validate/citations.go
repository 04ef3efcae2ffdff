package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
	"github.com/chanuka/mjadala/internal/util"
	"github.com/chanuka/mjadala/internal/worker"
)

const probeMaxRetries = 3

// probeSleepFunc is the sleep used between retries (injectable for tests)
var probeSleepFunc = time.Sleep

// CitationProber checks cited URLs for reachability with HEAD requests.
// It is polite: robots.txt is honored and probes are rate limited per
// host. A network failure is recorded as an error, never as a dead link;
// only a definitive 404 or 410 marks a citation dead.
type CitationProber struct {
	httpClient *http.Client
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	authority  *AuthorityClassifier
	userAgent  string
}

// NewCitationProber creates a prober from the HTTP config
func NewCitationProber(cfg model.HTTPConfig, authority *AuthorityClassifier) *CitationProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mjadala/0.1 (+https://github.com/chanuka/mjadala)"
	}
	if authority == nil {
		authority = NewAuthorityClassifier(nil, nil)
	}

	client := util.NewHTTPClient(cfg)

	return &CitationProber{
		httpClient: client,
		limiter:    worker.NewLimiter(cfg.RatePerHost, 2),
		robots:     util.NewRobotsChecker(client, util.NormalizeUserAgent(cfg.UserAgent)),
		authority:  authority,
		userAgent:  cfg.UserAgent,
	}
}

// Probe checks one cited URL, retrying transient failures with
// exponential backoff
func (p *CitationProber) Probe(ctx context.Context, rawURL string) model.CitationCheck {
	check := model.CitationCheck{
		URL:       rawURL,
		Authority: p.authority.Classify(rawURL),
	}

	allowed, crawlDelay, err := p.robots.CanFetch(ctx, rawURL)
	if err == nil && !allowed {
		check.Error = "disallowed by robots.txt"
		return check
	}

	if err := p.limiter.WaitWithDelay(ctx, rawURL, crawlDelay); err != nil {
		check.Error = fmt.Sprintf("rate limit: %v", err)
		return check
	}

	for attempt := 0; attempt < probeMaxRetries; attempt++ {
		check = p.probeOnce(ctx, rawURL, check.Authority)
		if !retryableCheck(check) {
			break
		}
		if attempt < probeMaxRetries-1 {
			probeSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}

	logging.Debug("Citation probed",
		"url", rawURL,
		"status", check.StatusCode,
		"accessible", check.IsAccessible,
		"dead", check.IsDead)

	return check
}

// probeOnce issues a single HEAD request
func (p *CitationProber) probeOnce(ctx context.Context, rawURL string, tier model.AuthorityTier) model.CitationCheck {
	check := model.CitationCheck{URL: rawURL, Authority: tier}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		check.Error = fmt.Sprintf("create request: %v", err)
		return check
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		check.Error = fmt.Sprintf("request failed: %v", err)
		return check
	}
	defer func() { _ = resp.Body.Close() }()

	check.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		check.IsAccessible = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		check.IsDead = true
	}

	if resp.Request.URL.String() != rawURL {
		check.RedirectURL = resp.Request.URL.String()
	}

	return check
}

// retryableCheck reports transient failures worth another attempt
func retryableCheck(check model.CitationCheck) bool {
	if check.StatusCode >= 500 && check.StatusCode < 600 {
		return true
	}
	if check.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if check.Error != "" {
		s := strings.ToLower(check.Error)
		return strings.Contains(s, "timeout") ||
			strings.Contains(s, "connection refused") ||
			strings.Contains(s, "connection reset")
	}
	return false
}
