// Package confloader provides configuration loading for the Hookbase CLI.
//
// It implements a flexible configuration loader supporting multiple
// sources and formats using koanf as the underlying library.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (loaded via LoadMap)
//  2. Environment variables (HOOKBASE_*)
//  3. Configuration file (YAML)
//  4. Default values
//
// A fsnotify-based Watcher reloads the file source when it changes,
// so long-running `hookbase listen` sessions pick up edits to
// timeouts and log levels without a restart.
package confloader
