package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends messages over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewMailer creates an SMTP mailer. Authentication is only used when a username is set.
func NewMailer(cfg SMTPConfig, logger *zap.Logger) (*Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{dialer: d, from: cfg.From, logger: logger}, nil
}

// Send delivers m. The dialer has no cancellation, so ctx is only checked before dialing.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	em := gomail.NewMessage()
	em.SetHeader("From", m.from)
	if msg.ToName != "" {
		em.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		em.SetHeader("To", msg.To)
	}
	em.SetHeader("Subject", msg.Subject)
	em.SetBody("text/plain", msg.Body)

	if err := m.dialer.DialAndSend(em); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Info("email sent", zap.String("subject", msg.Subject))
	return nil
}
