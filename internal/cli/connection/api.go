package connection

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/HookbaseApp/cli/internal/core/domain"
)

// CreateTunnelRequest is the payload for creating a tunnel record.
type CreateTunnelRequest struct {
	// Subdomain requests a specific public subdomain; empty lets the
	// control plane assign one.
	Subdomain string `json:"subdomain,omitempty"`

	// LocalPort is recorded for display purposes only; forwarding is
	// decided by the agent at listen time.
	LocalPort int `json:"local_port,omitempty"`
}

// Session is an authorized agent session for one tunnel.
type Session struct {
	// TransportURL is the websocket URL the agent dials. It carries
	// the tunnel id and a short-lived bearer token.
	TransportURL string `json:"transport_url"`

	// ExpiresAt is when the embedded token stops admitting new
	// connections (Unix milliseconds). Established connections
	// survive past it.
	ExpiresAt int64 `json:"expires_at"`
}

type listTunnelsResponse struct {
	Items []domain.Tunnel `json:"items"`
	Total int             `json:"total"`
}

type deliveriesResponse struct {
	Items []domain.DeliveryLog `json:"items"`
	Total int                  `json:"total"`
}

// CreateTunnel creates a tunnel record. The response includes the
// initial token and transport URL; the token is not retrievable
// later, only rotatable.
func (c *Client) CreateTunnel(ctx context.Context, req CreateTunnelRequest) (*domain.Tunnel, error) {
	var t domain.Tunnel
	if err := c.do(ctx, http.MethodPost, "/v1/tunnels", req, &t); err != nil {
		return nil, fmt.Errorf("create tunnel: %w", err)
	}
	return &t, nil
}

// ListTunnels returns all tunnel records for the account.
func (c *Client) ListTunnels(ctx context.Context) ([]domain.Tunnel, error) {
	var resp listTunnelsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/tunnels", nil, &resp); err != nil {
		return nil, fmt.Errorf("list tunnels: %w", err)
	}
	return resp.Items, nil
}

// GetTunnel returns one tunnel record.
func (c *Client) GetTunnel(ctx context.Context, id string) (*domain.Tunnel, error) {
	if err := domain.ValidateTunnelID(id); err != nil {
		return nil, err
	}
	var t domain.Tunnel
	if err := c.do(ctx, http.MethodGet, "/v1/tunnels/"+id, nil, &t); err != nil {
		return nil, fmt.Errorf("get tunnel %s: %w", id, err)
	}
	return &t, nil
}

// RotateToken invalidates the tunnel's current token and returns the
// record with a fresh one. Live connections keep running; the old
// token stops admitting new connections immediately.
func (c *Client) RotateToken(ctx context.Context, id string) (*domain.Tunnel, error) {
	if err := domain.ValidateTunnelID(id); err != nil {
		return nil, err
	}
	var t domain.Tunnel
	if err := c.do(ctx, http.MethodPost, "/v1/tunnels/"+id+"/rotate", nil, &t); err != nil {
		return nil, fmt.Errorf("rotate token for %s: %w", id, err)
	}
	return &t, nil
}

// DeleteTunnel removes a tunnel record and releases its subdomain.
func (c *Client) DeleteTunnel(ctx context.Context, id string) error {
	if err := domain.ValidateTunnelID(id); err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodDelete, "/v1/tunnels/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete tunnel %s: %w", id, err)
	}
	return nil
}

// OpenSession authorizes an agent session for an existing tunnel and
// returns the transport URL to dial.
func (c *Client) OpenSession(ctx context.Context, id string) (*Session, error) {
	if err := domain.ValidateTunnelID(id); err != nil {
		return nil, err
	}
	var s Session
	if err := c.do(ctx, http.MethodPost, "/v1/tunnels/"+id+"/sessions", nil, &s); err != nil {
		return nil, fmt.Errorf("open session for %s: %w", id, err)
	}
	return &s, nil
}

// DeliveryLogs returns the most recent deliveries for a tunnel,
// newest first. limit <= 0 uses the server default.
func (c *Client) DeliveryLogs(ctx context.Context, id string, limit int) ([]domain.DeliveryLog, error) {
	if err := domain.ValidateTunnelID(id); err != nil {
		return nil, err
	}

	path := "/v1/tunnels/" + id + "/deliveries"
	if limit > 0 {
		path += "?" + url.Values{"limit": {fmt.Sprint(limit)}}.Encode()
	}

	var resp deliveriesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("delivery logs for %s: %w", id, err)
	}
	return resp.Items, nil
}
