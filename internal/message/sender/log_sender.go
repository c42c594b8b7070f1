package sender

import (
	"context"
	"log/slog"

	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// LogSender is the fallback channel sender used when no WhatsApp API is
// configured. It logs the message and reports it as sent, which keeps local
// development and test environments draining the queue.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message and reports synchronous delivery.
func (l *LogSender) Send(
	_ context.Context,
	message *messageDomain.OutboundMessage,
) (messageDomain.SendOutcome, error) {
	if l.logger != nil {
		l.logger.Info("message delivery (log sender)",
			slog.String("message_id", message.ID.String()),
			slog.String("to_phone", message.ToPhone),
			slog.String("template", message.Template),
			slog.Any("payload", map[string]any(message.Payload)),
		)
	}
	return messageDomain.OutcomeSent, nil
}
