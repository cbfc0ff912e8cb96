// Package buildinfo provides build information for the Hookbase CLI.
//
// It exposes build-time values injected via ldflags:
//
//	go build -ldflags "-X github.com/HookbaseApp/cli/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
