// Package http builds the outbound HTTP clients used for avatars and
// backup uploads.
package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/http2"

	"github.com/wireapp/wire-desktop/internal/constants"
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	// ProxyURL forces a proxy. Empty uses the environment.
	ProxyURL string
	// NoProxy is a comma-separated bypass list (hosts, *.domains, CIDRs).
	NoProxy string
	// Timeout bounds each request. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// NewTransport creates a transport with HTTP/2 enabled and proxy support.
//
// HTTP/2 is turned off when a proxy is in use, many corporate proxies break
// multiplexed streams. Set DISABLE_HTTP2=true to force HTTP/1.1 everywhere.
func NewTransport(opts ClientOptions) (*nethttp.Transport, error) {
	tr := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: constants.HTTPTLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
		Proxy:               nethttp.ProxyFromEnvironment,
	}

	proxyActive := os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		tr.Proxy = proxyFuncWithBypass(proxyURL, opts.NoProxy)
		proxyActive = true
	}

	if proxyActive || os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		return tr, nil
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
	}
	return tr, nil
}

// NewClient creates an HTTP client over NewTransport.
func NewClient(opts ClientOptions) (*nethttp.Client, error) {
	tr, err := NewTransport(opts)
	if err != nil {
		return nil, err
	}
	return &nethttp.Client{Transport: tr, Timeout: opts.Timeout}, nil
}
