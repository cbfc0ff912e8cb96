package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigShow_RedactsAPIKey(t *testing.T) {
	srv := newMockServer(t)

	out, err := runApp(t, srv, "config", "show")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out, "hbak_test00000000000") {
		t.Errorf("full api key leaked:\n%s", out)
	}
	if !strings.Contains(out, "hbak_tes...") {
		t.Errorf("masked key missing:\n%s", out)
	}
	if !strings.Contains(out, "api.url") {
		t.Errorf("api.url row missing:\n%s", out)
	}
}

func TestConfigPath_HonorsFlag(t *testing.T) {
	srv := newMockServer(t)

	out, err := runApp(t, srv, "config", "path")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "no-config.yaml") {
		t.Errorf("output = %q, want the --config path", out)
	}
}

func TestConfigInit_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "config.yaml")

	app := App()
	err := app.Run([]string{
		"hookbase", "--config", path, "--log-level", "error",
		"config", "init",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "api.hookbase.app") {
		t.Errorf("config content = %s", data)
	}
}
