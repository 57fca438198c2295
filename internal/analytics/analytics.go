// Package analytics records product events emitted by the auth flows.
package analytics

import (
	"context"
	"log/slog"
)

// Event names shared with the client apps.
const (
	EventLogin         = "login"
	EventSignUp        = "sign_up"
	EventLogout        = "logout"
	EventPasswordReset = "password_reset_request"
)

// Tracker records a named event with optional properties.
type Tracker interface {
	Track(ctx context.Context, event string, props map[string]any)
}

// LogTracker writes events to the structured logger.
type LogTracker struct {
	logger *slog.Logger
}

// NewLogTracker constructs a logger-backed tracker.
func NewLogTracker(logger *slog.Logger) *LogTracker {
	return &LogTracker{logger: logger}
}

// Track writes the event to the structured logger.
func (t *LogTracker) Track(_ context.Context, event string, props map[string]any) {
	if t == nil || t.logger == nil {
		return
	}
	t.logger.Info("analytics event", "event", event, "props", props)
}

// Nop discards all events. Useful for tests.
type Nop struct{}

// Track implements Tracker.
func (Nop) Track(context.Context, string, map[string]any) {}
