package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "WIRE_DESKTOP"

// Env holds overrides read from WIRE_DESKTOP_* variables. Zero values leave
// the corresponding setting alone.
type Env struct {
	DataDir     string `envconfig:"DATA_DIR"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	MaxAccounts int    `envconfig:"MAX_ACCOUNTS"`
	WebappURL   string `envconfig:"WEBAPP_URL"`
	SSOPort     int    `envconfig:"SSO_PORT"`

	// SSOKey enables signature checks on SSO tokens. Never persisted.
	SSOKey string `envconfig:"SSO_KEY"`
}

// LoadEnv reads the environment overrides.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return env, nil
}

// Apply copies the set overrides into s.
func (e Env) Apply(s *Settings) {
	if e.LogLevel != "" {
		s.LogLevel = e.LogLevel
	}
	if e.MaxAccounts > 0 {
		s.MaximumAccounts = e.MaxAccounts
	}
	if e.WebappURL != "" {
		s.WebappURL = e.WebappURL
	}
	if e.SSOPort > 0 {
		s.SSOPort = e.SSOPort
	}
}
