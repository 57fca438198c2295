// Package notification delivers verification codes and account mail.
// The only shipped implementation logs instead of sending.
package notification

import (
	"context"
	"log/slog"
)

// Message kinds emitted by the auth providers.
const (
	KindVerificationCode = "verification_code"
	KindTwoFactorCode    = "two_factor_code"
	KindPasswordReset    = "password_reset"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Method      string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to
// the structured logger. Verification codes therefore end up in the
// log, which is the intended development behavior.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"method", message.Method,
		"destination", message.Destination,
		"body", message.Body,
	)
	return nil
}
