package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Message is one rendered notification ready for delivery.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Body    string
}

// Mailer delivers one rendered notification.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPMailer posts messages as JSON to a mail-relay endpoint.
type HTTPMailer struct {
	url    string
	client *http.Client
}

func NewHTTPMailer(url string) *HTTPMailer {
	return &HTTPMailer{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	payload := map[string]string{
		"to_name":  msg.ToName,
		"to_email": msg.ToEmail,
		"subject":  msg.Subject,
		"body":     msg.Body,
		"time":     time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}
	return nil
}

// LogMailer writes notifications to the log. Used when no relay endpoint
// is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("notification (log only)",
		"to", msg.ToEmail,
		"subject", msg.Subject,
	)
	return nil
}
