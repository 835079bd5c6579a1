package mailer

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewSMTPSender creates an SMTP sender. PLAIN auth is used when a username is set.
func NewSMTPSender(cfg config.NotificationConfig) *SMTPSender {
	s := &SMTPSender{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host:     cfg.SMTPHost,
		from:     cfg.EmailFrom,
		sendMail: smtp.SendMail,
	}
	if cfg.SMTPUsername != "" {
		s.auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return s
}

// Send blocks until the relay accepts the message or ctx expires. net/smtp
// has no context support, so an expired ctx abandons the in-flight call.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if err := validate(email); err != nil {
		return err
	}
	msg := buildMessage(s.from, email, time.Now())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.sendMail(s.addr, s.auth, s.from, []string{email.To}, msg)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, email Email, now time.Time) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", from)
	header("To", email.To)
	header("Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if email.HTML == "" {
		header("Content-Type", `text/plain; charset="utf-8"`)
		b.WriteString("\r\n")
		b.WriteString(email.Text)
		return []byte(b.String())
	}

	boundary := "desk-" + uuid.NewString()
	header("Content-Type", `multipart/alternative; boundary="`+boundary+`"`)
	b.WriteString("\r\n")
	part := func(ctype, body string) {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString(`Content-Type: ` + ctype + `; charset="utf-8"` + "\r\n\r\n")
		b.WriteString(body)
		b.WriteString("\r\n")
	}
	part("text/plain", email.Text)
	part("text/html", email.HTML)
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}
