package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier implements ports.Notifier by logging messages instead of
// delivering them. Used when no broker is configured, and by the refund
// tool.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the message and always succeeds.
func (n *LogNotifier) Notify(ctx context.Context, userID int64, message string) error {
	n.log.Info().Int64("user_id", userID).Str("message", message).Msg("user notification")
	return nil
}
