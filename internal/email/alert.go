package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"
)

const alertSubjectPrefix = "[smart-stay] "

// Notifier mails operational alerts to the property host.
// A Notifier without a client only logs the alert.
type Notifier struct {
	client *Client
	to     []string
	logger *slog.Logger
}

func NewNotifier(client *Client, to []string) *Notifier {
	return &Notifier{
		client: client,
		to:     to,
		logger: slog.With("component", "alerts"),
	}
}

// NewNotifierFromConfig returns a mailing notifier when SMTP is configured, a log-only one otherwise.
func NewNotifierFromConfig(cfg SMTPConfig) *Notifier {
	if !cfg.Enabled() {
		slog.Info("Alert mail disabled, alerts are logged only")
		return NewNotifier(nil, nil)
	}
	client, err := NewClient(cfg)
	if err != nil {
		slog.Error("Failed to create mail client, alerts are logged only", "error", err)
		return NewNotifier(nil, nil)
	}
	return NewNotifier(client, cfg.To)
}

// Alert logs the alert and, when mail is configured, sends it to the host.
func (n *Notifier) Alert(ctx context.Context, subject string, body string) error {
	n.logger.Warn("Alert raised", "subject", subject, "body", body)
	if n.client == nil {
		return nil
	}

	msg := &Message{
		To:      n.to,
		Subject: alertSubjectPrefix + subject,
		HTML: fmt.Sprintf("<h2>%s</h2><p>%s</p><p><small>%s</small></p>",
			html.EscapeString(subject),
			html.EscapeString(body),
			time.Now().UTC().Format(time.RFC3339)),
	}
	if err := n.client.Send(ctx, msg); err != nil {
		n.logger.Error("Failed to send alert mail", "error", err)
		return err
	}
	return nil
}
