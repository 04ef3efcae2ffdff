package validate

import (
	"net/url"
	"strings"

	"github.com/chanuka/mjadala/internal/model"
)

// Built-in tiers for sources Kenyan commenters cite. Primary means the
// document itself can settle a factual dispute (statute, gazette,
// official record, national statistics); secondary means established
// reporting, fact-checking, or research.
var (
	defaultPrimaryDomains = []string{
		"parliament.go.ke",
		"kenyalaw.org",
		"knbs.or.ke",
		"treasury.go.ke",
		"centralbank.go.ke",
		"gazettes.africa",
	}
	defaultSecondaryDomains = []string{
		"nation.africa",
		"standardmedia.co.ke",
		"theeastafrican.co.ke",
		"africacheck.org",
		"reuters.com",
		"bbc.co.uk",
		"wikipedia.org",
	}
)

// AuthorityClassifier maps cited hosts onto authority tiers
type AuthorityClassifier struct {
	primary   map[string]bool
	secondary map[string]bool
}

// NewAuthorityClassifier creates a classifier; empty domain lists fall
// back to the built-in defaults
func NewAuthorityClassifier(primary, secondary []string) *AuthorityClassifier {
	if len(primary) == 0 {
		primary = defaultPrimaryDomains
	}
	if len(secondary) == 0 {
		secondary = defaultSecondaryDomains
	}

	c := &AuthorityClassifier{
		primary:   make(map[string]bool, len(primary)),
		secondary: make(map[string]bool, len(secondary)),
	}
	for _, d := range primary {
		c.primary[strings.ToLower(d)] = true
	}
	for _, d := range secondary {
		c.secondary[strings.ToLower(d)] = true
	}
	return c
}

// Classify returns the authority tier for a cited URL
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	host = strings.TrimPrefix(host, "www.")

	if matchesDomain(host, a.primary) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondary) {
		return model.TierSecondary
	}

	// Government and academic hosts count as primary even when unlisted
	if strings.HasSuffix(host, ".go.ke") || strings.HasSuffix(host, ".ac.ke") ||
		strings.HasSuffix(host, ".gov") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// matchesDomain reports whether host equals or is a subdomain of any
// listed domain
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
