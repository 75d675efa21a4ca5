package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wireapp/wire-desktop/internal/constants"
)

// Settings is the content of config/init.json.
type Settings struct {
	ConfigVersion   int    `json:"configVersion"`
	Locale          string `json:"locale"`
	LogLevel        string `json:"logLevel"`
	WebappURL       string `json:"webappURL"`
	MaximumAccounts int    `json:"maximumAccounts"`

	ShowMenuBar     bool `json:"showMenuBar"`
	SpellCheck      bool `json:"spellCheck"`
	AutoLaunch      bool `json:"autoLaunch"`
	ShowUnreadBadge bool `json:"showUnreadBadge"`

	// SSOPort is the loopback port of the SSO callback listener. 0 picks a
	// free port.
	SSOPort int `json:"ssoPort"`

	// ProxyURL routes outbound requests (avatars, uploads) through a proxy.
	// Empty uses the HTTP(S)_PROXY environment.
	ProxyURL string `json:"proxyURL"`
	NoProxy  string `json:"noProxy"`

	Window   WindowSettings   `json:"window"`
	Backup   BackupSettings   `json:"backup"`
	Metadata SettingsMetadata `json:"metadata"`
}

type WindowSettings struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BackupSettings controls where exported archives go.
type BackupSettings struct {
	Directory string `json:"directory"`

	// Publish destinations. Empty values disable the destination.
	S3Bucket        string `json:"s3Bucket"`
	S3Region        string `json:"s3Region"`
	S3Prefix        string `json:"s3Prefix"`
	S3Endpoint      string `json:"s3Endpoint"`
	AzureSASURL     string `json:"azureSASURL"`
	AzureBlobPrefix string `json:"azureBlobPrefix"`
}

type SettingsMetadata struct {
	LastUpdated string `json:"lastUpdated"`
}

// Validation errors.
var (
	ErrInvalidWebappURL       = errors.New("webappURL must be an absolute http or https URL")
	ErrInvalidMaximumAccounts = errors.New("maximumAccounts must be between 1 and 32")
	ErrInvalidSSOPort         = errors.New("ssoPort must be between 0 and 65535")
	ErrInvalidLogLevel        = errors.New("logLevel must be one of debug, info, warn, error")
	ErrInvalidProxyURL        = errors.New("proxyURL must be an absolute URL")
)

// DefaultSettings returns the settings used for fields the file omits.
func DefaultSettings() Settings {
	return Settings{
		ConfigVersion:   constants.SettingsVersion,
		Locale:          "en",
		LogLevel:        "info",
		WebappURL:       constants.DefaultWebappURL,
		MaximumAccounts: constants.DefaultMaximumAccounts,
		ShowMenuBar:     true,
		SpellCheck:      true,
		ShowUnreadBadge: true,
		Window: WindowSettings{
			Width:  1024,
			Height: 768,
		},
	}
}

// Validate checks the settings for consistency.
func (s Settings) Validate() error {
	u, err := url.Parse(s.WebappURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidWebappURL, s.WebappURL)
	}
	if s.MaximumAccounts < 1 || s.MaximumAccounts > constants.MaximumAccountsCap {
		return fmt.Errorf("%w: got %d", ErrInvalidMaximumAccounts, s.MaximumAccounts)
	}
	if s.SSOPort < 0 || s.SSOPort > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidSSOPort, s.SSOPort)
	}
	if s.ProxyURL != "" {
		if p, err := url.Parse(s.ProxyURL); err != nil || p.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidProxyURL, s.ProxyURL)
		}
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, s.LogLevel)
	}
	return nil
}

// WebappOrigin returns scheme://host of WebappURL.
func (s Settings) WebappOrigin() string {
	u, err := url.Parse(s.WebappURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
