// Package logger provides structured logging for the Hookbase CLI.
//
// It wraps log/slog with:
//
//   - JSON structured logging (default), text for interactive use
//   - Automatic redaction of Hookbase secrets (hb*_ prefixed values,
//     bearer tokens embedded in transport URLs)
//   - Context-aware logging with delivery ID propagation
//   - Dynamic log level adjustment
package logger
