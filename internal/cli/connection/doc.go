// Package connection is the Hookbase control-plane API client.
//
// It covers the tunnel record lifecycle (create, list, inspect,
// rotate, delete), delivery history, and opening agent sessions that
// yield the websocket transport URL the tunnel client dials.
package connection
