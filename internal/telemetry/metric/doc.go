// Package metric provides Prometheus metrics for the tunnel agent.
//
// It exposes connection state, reconnect counts, in-flight forwards,
// and per-request counters/latencies. The agent registers everything
// on a private registry so several tunnel clients can coexist in one
// process without metric collisions; `hookbase listen --metrics-addr`
// serves the registry over HTTP.
package metric
