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

// LogSender writes each message to a structured logger.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (l LogSender) Send(ctx context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		slog.String("from", msg.From),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("doctype", msg.DocType),
		slog.String("docname", msg.DocID),
	)
	return nil
}

// WebhookSender posts each message as JSON to URL.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

type webhookPayload struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	DocType   string    `json:"doctype"`
	DocID     string    `json:"docname"`
	CreatedAt time.Time `json:"created_at"`
}

// Send implements Sender. Any non-2xx response is an error.
func (w WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookPayload{
		From:      msg.From,
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		DocType:   msg.DocType,
		DocID:     msg.DocID,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("notify: encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned %s", resp.Status)
	}
	return nil
}
