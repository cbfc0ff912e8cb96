// Package tunnel implements the local tunnel agent: it holds one
// authenticated websocket connection to the Hookbase relay and
// forwards webhook deliveries arriving at the tunnel's public
// subdomain down to a local HTTP service.
//
// The Client facade composes three parts:
//
//   - a connection manager owning the transport: dial, liveness
//     pings, unexpected-close detection, exponential-backoff
//     reconnection
//   - a request multiplexer tracking in-flight correlation ids,
//     deduplicating redeliveries and enforcing per-request timeouts
//   - a local forwarder (package forward) executing one HTTP call
//     per request against localhost
//
// Per-request failures never end the session; they surface as
// synthesized 502/504 responses. Only connection-level and fatal
// auth errors reach the OnError hook.
package tunnel
