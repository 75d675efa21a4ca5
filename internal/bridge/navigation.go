package bridge

import (
	"net/url"
	"strings"

	"github.com/wireapp/wire-desktop/internal/ipc"
)

// externalSchemes may be handed to the system browser or mail client.
var externalSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
}

// CheckNavigation decides what a webview may do with rawURL. Only URLs on
// the web client origin load in place; other web and mail links go to the
// system handler; everything else is dropped.
func CheckNavigation(origin, rawURL string) ipc.NavigateResult {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return ipc.NavigateResult{}
	}
	scheme := strings.ToLower(u.Scheme)

	if o, err := url.Parse(origin); err == nil && o.Host != "" {
		if scheme == strings.ToLower(o.Scheme) && strings.EqualFold(u.Host, o.Host) {
			return ipc.NavigateResult{Allowed: true}
		}
	}
	if externalSchemes[scheme] {
		if scheme != "mailto" && u.Host == "" {
			return ipc.NavigateResult{}
		}
		return ipc.NavigateResult{External: true}
	}
	return ipc.NavigateResult{}
}
