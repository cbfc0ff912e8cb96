package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	spec, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if spec.API.URL != "https://api.hookbase.app" {
		t.Errorf("api url = %q", spec.API.URL)
	}
	if spec.Log.Level != "info" {
		t.Errorf("log level = %q", spec.Log.Level)
	}
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  url: https://api.staging.hookbase.app
  key: hbak_file000000000000
tunnel:
  port: 3000
  timeout: 45s
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HOOKBASE_TUNNEL_PORT", "8080")

	spec, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if spec.API.URL != "https://api.staging.hookbase.app" {
		t.Errorf("api url = %q", spec.API.URL)
	}
	if spec.API.Key != "hbak_file000000000000" {
		t.Errorf("api key = %q", spec.API.Key)
	}
	if spec.Tunnel.Port != 8080 {
		t.Errorf("tunnel port = %d, env should override file", spec.Tunnel.Port)
	}
	if spec.Tunnel.Timeout != 45*time.Second {
		t.Errorf("tunnel timeout = %v", spec.Tunnel.Timeout)
	}
	if spec.Log.Level != "debug" {
		t.Errorf("log level = %q", spec.Log.Level)
	}
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  key: wrongprefix\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "hbak_") {
		t.Fatalf("load error = %v, want hbak_ prefix complaint", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	in := Default()
	in.API.Key = "hbak_roundtrip0000000"
	in.Tunnel.Port = 4000
	in.Tunnel.Subdomain = "ci-builds"
	in.Tunnel.Timeout = 20 * time.Second
	in.Metrics.Addr = "127.0.0.1:9090"

	if err := Save(in, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 0600", perm)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.API.Key != in.API.Key {
		t.Errorf("api key = %q", out.API.Key)
	}
	if out.Tunnel.Port != in.Tunnel.Port {
		t.Errorf("tunnel port = %d", out.Tunnel.Port)
	}
	if out.Tunnel.Subdomain != in.Tunnel.Subdomain {
		t.Errorf("subdomain = %q", out.Tunnel.Subdomain)
	}
	if out.Tunnel.Timeout != in.Tunnel.Timeout {
		t.Errorf("timeout = %v", out.Tunnel.Timeout)
	}
	if out.Metrics.Addr != in.Metrics.Addr {
		t.Errorf("metrics addr = %q", out.Metrics.Addr)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr bool
	}{
		{"defaults pass", func(s *Spec) {}, false},
		{"bad api scheme", func(s *Spec) { s.API.URL = "ftp://api.hookbase.app" }, true},
		{"bad api key prefix", func(s *Spec) { s.API.Key = "sk_live_nope" }, true},
		{"bad tunnel id prefix", func(s *Spec) { s.Tunnel.ID = "tn-123" }, true},
		{"port out of range", func(s *Spec) { s.Tunnel.Port = 99999 }, true},
		{"negative timeout", func(s *Spec) { s.Tunnel.Timeout = -time.Second }, true},
		{"unknown log level", func(s *Spec) { s.Log.Level = "loud" }, true},
		{"valid full", func(s *Spec) {
			s.API.Key = "hbak_ok"
			s.Tunnel.ID = "hbtn-01hgw2f8qexample0000000000"
			s.Tunnel.Port = 3000
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Default()
			tt.mutate(spec)
			err := spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
