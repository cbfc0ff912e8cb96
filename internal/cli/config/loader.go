package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/HookbaseApp/cli/internal/infra/confloader"
)

// DefaultPath returns the default CLI config file path.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".hookbase", "config.yaml")
}

// Load resolves the configuration. A missing config file is not an
// error; defaults and HOOKBASE_* environment variables still apply.
func Load(path string) (*Spec, error) {
	if path == "" {
		path = DefaultPath()
	}

	opts := []confloader.Option{}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	}

	spec := Default()
	if err := confloader.NewLoader(opts...).Load(spec); err != nil {
		return nil, err
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return spec, nil
}

// Save writes the configuration as YAML. The file is created 0600
// because it holds the account API key.
func Save(spec *Spec, path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(fileLayout(spec))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// fileLayout mirrors Spec with yaml tags matching the koanf keys, so
// a saved file round-trips through Load.
func fileLayout(s *Spec) map[string]any {
	out := map[string]any{
		"api": map[string]any{
			"url": s.API.URL,
			"key": s.API.Key,
		},
		"log": map[string]any{
			"level":  s.Log.Level,
			"format": s.Log.Format,
		},
	}

	tunnel := map[string]any{}
	if s.Tunnel.ID != "" {
		tunnel["id"] = s.Tunnel.ID
	}
	if s.Tunnel.Port != 0 {
		tunnel["port"] = s.Tunnel.Port
	}
	if s.Tunnel.Subdomain != "" {
		tunnel["subdomain"] = s.Tunnel.Subdomain
	}
	if s.Tunnel.Timeout != 0 {
		tunnel["timeout"] = s.Tunnel.Timeout.String()
	}
	if len(tunnel) > 0 {
		out["tunnel"] = tunnel
	}

	if s.Metrics.Addr != "" {
		out["metrics"] = map[string]any{"addr": s.Metrics.Addr}
	}
	return out
}
