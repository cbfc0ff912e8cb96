package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Spec is the full hookbase CLI configuration.
type Spec struct {
	API     APIConfig     `koanf:"api"`
	Tunnel  TunnelConfig  `koanf:"tunnel"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// APIConfig points at the Hookbase control plane.
type APIConfig struct {
	// URL is the control-plane base URL.
	URL string `koanf:"url"`

	// Key is the account API key (hbak_ prefixed). Never logged
	// unredacted.
	Key string `koanf:"key"`
}

// TunnelConfig carries tunnel defaults for the listen command.
type TunnelConfig struct {
	// ID pins listen to an existing tunnel record instead of
	// creating an ephemeral one.
	ID string `koanf:"id"`

	// Port is the default local port to forward to.
	Port int `koanf:"port"`

	// Subdomain requests a specific public subdomain on create.
	Subdomain string `koanf:"subdomain"`

	// Timeout bounds a single forwarded request end to end.
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig controls CLI logging.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `koanf:"level"`

	// Format is the log output format (json, text).
	Format string `koanf:"format"`
}

// MetricsConfig controls the optional local metrics endpoint.
type MetricsConfig struct {
	// Addr, when set, serves Prometheus metrics on this address
	// during listen (e.g. 127.0.0.1:9090).
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Spec {
	return &Spec{
		API: APIConfig{
			URL: "https://api.hookbase.app",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks field constraints for everything that is set.
// Unset optional fields pass.
func (s *Spec) Validate() error {
	if s.API.URL != "" {
		u, err := url.Parse(s.API.URL)
		if err != nil {
			return fmt.Errorf("api.url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("api.url: scheme must be http or https, got %q", u.Scheme)
		}
	}
	if s.API.Key != "" && !strings.HasPrefix(s.API.Key, "hbak_") {
		return fmt.Errorf("api.key: must start with hbak_")
	}
	if s.Tunnel.ID != "" && !strings.HasPrefix(s.Tunnel.ID, "hbtn-") {
		return fmt.Errorf("tunnel.id: must start with hbtn-")
	}
	if s.Tunnel.Port != 0 && (s.Tunnel.Port < 1 || s.Tunnel.Port > 65535) {
		return fmt.Errorf("tunnel.port: %d out of range", s.Tunnel.Port)
	}
	if s.Tunnel.Timeout < 0 {
		return fmt.Errorf("tunnel.timeout: must not be negative")
	}
	switch strings.ToLower(s.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", s.Log.Level)
	}
	return nil
}
