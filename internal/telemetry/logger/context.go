// Package logger provides structured logging for the Hookbase CLI.
package logger

import "context"

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// loggerKey is the context key for the logger.
	loggerKey contextKey = "hookbase.logger"
	// deliveryIDKey is the context key for the webhook delivery ID.
	deliveryIDKey contextKey = "hookbase.delivery_id"
	// tunnelIDKey is the context key for the tunnel ID.
	tunnelIDKey contextKey = "hookbase.tunnel_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithDeliveryID adds a webhook delivery ID to the context.
func WithDeliveryID(ctx context.Context, deliveryID string) context.Context {
	return context.WithValue(ctx, deliveryIDKey, deliveryID)
}

// DeliveryIDFromContext extracts the delivery ID from context.
func DeliveryIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(deliveryIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTunnelID adds a tunnel ID to the context.
func WithTunnelID(ctx context.Context, tunnelID string) context.Context {
	return context.WithValue(ctx, tunnelIDKey, tunnelID)
}

// TunnelIDFromContext extracts the tunnel ID from context.
func TunnelIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tunnelIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with delivery ID and tunnel ID from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if deliveryID := DeliveryIDFromContext(ctx); deliveryID != "" {
		l = l.With("delivery_id", deliveryID)
	}

	if tunnelID := TunnelIDFromContext(ctx); tunnelID != "" {
		l = l.With("tunnel_id", tunnelID)
	}

	return l
}
