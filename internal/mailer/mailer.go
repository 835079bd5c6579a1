package mailer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// ErrNoRecipient is returned when an email has no destination address.
var ErrNoRecipient = errors.New("email has no recipient")

// Email is a single outbound message. HTML is optional.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// New builds the sender selected by cfg.Provider. Unknown or incomplete
// providers fall back to logging.
func New(cfg config.NotificationConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "noop":
		return noopSender{}
	case "fail":
		return failSender{}
	case "smtp":
		if cfg.SMTPHost == "" {
			logger.Warn("NOTIFY_SMTP_HOST not set; falling back to log sender")
			return NewLogSender(logger)
		}
		return NewSMTPSender(cfg)
	case "webhook":
		if cfg.WebhookURL == "" {
			logger.Warn("NOTIFY_WEBHOOK_URL not set; falling back to log sender")
			return NewLogSender(logger)
		}
		return NewWebhookSender(cfg.WebhookURL, cfg.WebhookToken, cfg.Timeout())
	default:
		return NewLogSender(logger)
	}
}

type noopSender struct{}

func (noopSender) Send(context.Context, Email) error { return nil }

type failSender struct{}

func (failSender) Send(context.Context, Email) error { return errors.New("provider failure") }

func validate(email Email) error {
	if strings.TrimSpace(email.To) == "" {
		return ErrNoRecipient
	}
	return nil
}
