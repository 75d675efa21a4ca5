package http

import (
	"net/http"
	"testing"
)

func TestNewTransport_ProxyBypass(t *testing.T) {
	tests := []struct {
		name    string
		noProxy string
		url     string
		direct  bool
	}{
		{"webapp through proxy", "", "https://app.wire.com/", false},
		{"sso loopback without bypass list", "", "http://127.0.0.1:52100/sso/callback", true},
		{"localhost without bypass list", "", "http://localhost:52100/sso/callback", true},
		{"asset subdomain bypassed", "*.wire.com", "https://assets.wire.com/v3/assets/abc", true},
		{"wildcard does not cover apex", "*.wire.com", "https://wire.com/", false},
		{"bare domain covers subdomains", "wire.link", "https://account.wire.link/", true},
		{"s3 endpoint with port", "minio.office.lan:9000", "http://minio.office.lan:9000/archive/u1/backup.tar.gz", true},
		{"s3 endpoint other port", "minio.office.lan:9000", "http://minio.office.lan:9001/archive", false},
		{"on-prem backend range", "10.0.0.0/8", "https://10.20.0.5/assets/abc", true},
		{"azure outside list", "*.wire.com, 10.0.0.0/8", "https://acct.blob.core.windows.net/backups/a.tar.gz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransport(ClientOptions{ProxyURL: "http://proxy.corp:8080", NoProxy: tt.noProxy})
			if err != nil {
				t.Fatalf("NewTransport failed: %v", err)
			}
			req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
			got, err := tr.Proxy(req)
			if err != nil {
				t.Fatalf("proxy func failed: %v", err)
			}
			if tt.direct && got != nil {
				t.Errorf("expected direct connection for %s, got proxy %v", tt.url, got)
			}
			if !tt.direct {
				if got == nil {
					t.Fatalf("expected proxy for %s, got direct", tt.url)
				}
				if got.Host != "proxy.corp:8080" {
					t.Errorf("unexpected proxy host %s", got.Host)
				}
			}
		})
	}
}
