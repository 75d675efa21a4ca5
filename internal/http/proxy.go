package http

import (
	nethttp "net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// proxyFuncWithBypass routes requests through proxyURL unless the host is
// in the noProxy list. Loopback hosts, such as the SSO callback listener,
// never go through the proxy.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}
