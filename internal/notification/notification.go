// Package notification delivers rendered security reports over configured
// channels.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/logging"
	"github.com/telhawk-systems/loginwatch/internal/metrics"
)

// Channel defines the interface for report delivery.
type Channel interface {
	Send(ctx context.Context, report *Report) error
	Type() string
}

// WebhookChannel posts reports as JSON to an HTTP endpoint.
type WebhookChannel struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

// NewWebhookChannel creates a webhook delivery channel.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		URL:     url,
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (w *WebhookChannel) Type() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, report *Report) error {
	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LoginWatch/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// EmailChannel delivers reports as HTML mail over SMTP.
type EmailChannel struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// NewEmailChannel creates an SMTP delivery channel. to is a comma-separated
// recipient list.
func NewEmailChannel(host string, port int, username, password, from, to string) *EmailChannel {
	var recipients []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &EmailChannel{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		To:       recipients,
	}
}

func (e *EmailChannel) Type() string {
	return "email"
}

func (e *EmailChannel) Send(ctx context.Context, report *Report) error {
	if len(e.To) == 0 {
		return errors.New("no recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", report.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(report.HTML)

	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	auth := smtp.PlainAuth("", e.Username, e.Password, e.Host)
	if err := smtp.SendMail(addr, auth, e.From, e.To, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogChannel writes report deliveries to the structured log. Used when no
// external channel is configured, so report generation stays observable.
type LogChannel struct {
	Logger *logging.Logger
}

func (l *LogChannel) Type() string {
	return "log"
}

func (l *LogChannel) Send(ctx context.Context, report *Report) error {
	l.Logger.InfoContext(ctx, "report generated",
		"kind", report.Kind,
		"subject", report.Subject)
	return nil
}

// Multi fans a report out to every channel, recording per-channel metrics.
// Delivery errors are collected; one failing channel does not stop the rest.
type Multi struct {
	Channels []Channel
}

func (m *Multi) Type() string {
	return "multi"
}

func (m *Multi) Send(ctx context.Context, report *Report) error {
	var errs []error
	for _, ch := range m.Channels {
		if err := ch.Send(ctx, report); err != nil {
			metrics.ReportErrors.Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch.Type(), err))
			continue
		}
		metrics.ReportsSent.WithLabelValues(report.Kind, ch.Type()).Inc()
	}
	return errors.Join(errs...)
}
