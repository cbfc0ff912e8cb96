// Package main provides the entry point for the hookbase CLI.
//
// hookbase exposes a local HTTP service to hosted webhook traffic:
//
//   - listen: run the tunnel agent and forward requests to localhost
//   - tunnel: manage tunnel records (create, list, rotate, delete, logs)
//   - config: inspect and manage the CLI configuration
//
// Usage:
//
//	hookbase [command] [flags]
//	hookbase listen 3000
//	hookbase tunnel list --output json
//
// Configuration resolves from ~/.hookbase/config.yaml, HOOKBASE_*
// environment variables, and flags, in that order.
package main
