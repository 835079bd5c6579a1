package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes emails to the structured log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	if err := validate(email); err != nil {
		return err
	}
	s.logger.Info("email",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int("text_len", len(email.Text)),
		zap.Bool("html", email.HTML != ""))
	return nil
}
