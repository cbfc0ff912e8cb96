// Package domain defines the core domain models for the Hookbase CLI.
package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Tunnel identifier constraints.
const (
	// TunnelIDPrefix is the prefix for tunnel record IDs.
	// Format: hbtn-{ulid_lowercase}, 31 characters total.
	TunnelIDPrefix = "hbtn-"

	// MaxSubdomainLength bounds relay-assigned subdomains.
	MaxSubdomainLength = 63
)

// ErrInvalidTunnelID indicates a malformed tunnel identifier.
var ErrInvalidTunnelID = errors.New("invalid tunnel id")

// Tunnel is a tunnel record as served by the control-plane API: a
// mapping from a public subdomain to a developer's local HTTP service.
type Tunnel struct {
	// ID is the unique identifier. Format: hbtn-{ulid_lowercase}.
	ID string `json:"id"`

	// Subdomain is the public subdomain assigned by the relay.
	Subdomain string `json:"subdomain"`

	// PublicURL is the full public base URL for inbound webhooks.
	PublicURL string `json:"public_url"`

	// TransportURL is the websocket URL the agent dials. It already
	// carries the tunnel id and a short-lived bearer token as query
	// parameters.
	TransportURL string `json:"transport_url"`

	// Token is the short-lived bearer token (hbtk_ prefixed). Only
	// present in create/rotate responses.
	Token string `json:"token,omitempty"`

	// CreatedAt is the record creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// LastConnectedAt is when an agent last held the tunnel open
	// (Unix milliseconds, 0 if never).
	LastConnectedAt int64 `json:"last_connected_at"`

	// TotalRequests is the aggregate forwarded request count.
	TotalRequests uint64 `json:"total_requests"`
}

// NewTunnelID generates a new tunnel ID using ULID.
func NewTunnelID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", fmt.Errorf("generate tunnel id: %w", err)
	}
	return TunnelIDPrefix + strings.ToLower(id.String()), nil
}

// ValidateTunnelID checks that an ID is a well-formed tunnel identifier.
func ValidateTunnelID(id string) error {
	if !strings.HasPrefix(id, TunnelIDPrefix) {
		return fmt.Errorf("%w: missing %q prefix", ErrInvalidTunnelID, TunnelIDPrefix)
	}
	body := strings.ToUpper(id[len(TunnelIDPrefix):])
	if _, err := ulid.Parse(body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTunnelID, err)
	}
	return nil
}

// NewAgentSessionID generates a per-process agent session identifier
// used in logs and the dial User-Agent. Not a secret.
func NewAgentSessionID() string {
	return "hbag-" + strings.ToLower(ulid.Make().String())
}

// DeliveryLog is one historical delivery entry from the control plane.
type DeliveryLog struct {
	ID         string `json:"id"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	ReceivedAt int64  `json:"received_at"`
}
