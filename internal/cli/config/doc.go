// Package config defines the hookbase CLI configuration.
//
// Configuration is resolved from three sources, later overriding
// earlier: the YAML config file (~/.hookbase/config.yaml by default),
// HOOKBASE_* environment variables, and command-line flags.
package config
