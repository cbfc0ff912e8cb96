// Package command defines the hookbase CLI commands.
//
// It uses urfave/cli/v2 for command parsing. The listen command runs
// the tunnel agent; the tunnel command group manages tunnel records
// on the control plane.
package command
