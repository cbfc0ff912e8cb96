// Package shutdown provides graceful shutdown for the Hookbase CLI.
//
// It handles process termination signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - Timeout-based forced shutdown
//   - Cleanup callback registration, run in reverse order
//
// The `listen` command registers the tunnel client's Close here so a
// Ctrl-C drains in-flight forwards before the transport closes.
package shutdown
