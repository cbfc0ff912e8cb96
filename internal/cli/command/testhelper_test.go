package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HookbaseApp/cli/internal/core/domain"
)

const testTunnelID = "hbtn-01hgw2f8q0abcdefghjkmnpqrs"

// mockServer is a fake control plane with path-prefix handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Longest matching prefix wins so /tunnels/{id}/sessions is
		// not swallowed by a /tunnels/{id} handler.
		var best http.HandlerFunc
		bestLen := -1
		for pattern, handler := range m.handlers {
			if strings.HasPrefix(r.URL.Path, pattern) && len(pattern) > bestLen {
				best = handler
				bestLen = len(pattern)
			}
		}
		if best == nil {
			http.NotFound(w, r)
			return
		}
		best(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]string{"code": code, "message": message})
}

// runApp runs the full CLI against the mock control plane and
// captures stdout.
func runApp(t *testing.T, srv *mockServer, args ...string) (string, error) {
	t.Helper()

	app := App()
	var buf bytes.Buffer
	app.Writer = &buf

	full := []string{
		"hookbase",
		"--config", filepath.Join(t.TempDir(), "no-config.yaml"),
		"--api-url", srv.URL,
		"--api-key", "hbak_test00000000000",
		"--log-level", "error",
	}
	full = append(full, args...)

	err := app.Run(full)
	return buf.String(), err
}

func sampleTunnel() domain.Tunnel {
	return domain.Tunnel{
		ID:              testTunnelID,
		Subdomain:       "ci-builds",
		PublicURL:       "https://ci-builds.hookbase.dev",
		TransportURL:    "wss://relay.hookbase.app/tunnel/" + testTunnelID + "?token=hbtk_x",
		CreatedAt:       1756000000000,
		LastConnectedAt: 1756600000000,
		TotalRequests:   42,
	}
}
