// Package domain defines the core domain models for the Hookbase CLI.
//
// Domain models are pure value objects without IO dependencies or
// framework coupling. Tunnel records are owned by the control-plane
// API; the CLI only reads and displays them.
package domain
