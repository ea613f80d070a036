package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

// Webhook posts {"content": "..."} to a chat webhook such as Discord's.
type Webhook struct {
	url        string
	httpClient *http.Client
	loc        *time.Location
}

// NewWebhook builds the webhook dispatcher.
func NewWebhook(cfg config.WebhookConfig, loc *time.Location) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		loc:        locationOrUTC(loc),
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Enabled() bool { return w.url != "" }

// Dispatch posts the message. Success is judged by status code only.
func (w *Webhook) Dispatch(ctx context.Context, a models.AlertEvent) (string, error) {
	body, err := json.Marshal(map[string]string{"content": ChatMessage(a, w.loc)})
	if err != nil {
		return "", fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return "", nil
}
