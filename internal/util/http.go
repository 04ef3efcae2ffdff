package util

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chanuka/mjadala/internal/model"
	"golang.org/x/net/http/httpproxy"
)

// NewHTTPClient builds the outbound client used by the citation prober:
// bounded timeout, capped redirects, optional proxy and TLS relaxation.
func NewHTTPClient(cfg model.HTTPConfig) *http.Client {
	transport := &http.Transport{
		Proxy: proxyFunc(cfg),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}
}

// proxyFunc resolves the proxy per request; with nothing configured it
// falls back to the standard environment variables
func proxyFunc(cfg model.HTTPConfig) func(*http.Request) (*url.URL, error) {
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" && cfg.NoProxy == "" {
		return http.ProxyFromEnvironment
	}

	proxy := (&httpproxy.Config{
		HTTPProxy:  cfg.HTTPProxy,
		HTTPSProxy: cfg.HTTPSProxy,
		NoProxy:    cfg.NoProxy,
	}).ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}
