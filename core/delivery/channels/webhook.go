package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	models "alert_center/core/api/models/mongodb"
)

// WebhookTransport gửi notification dưới dạng JSON POST tới chat webhook.
// URL lấy từ config của channel (key "url"). Các config key có prefix "header_"
// được gửi kèm như HTTP header (ví dụ header_Authorization).
type WebhookTransport struct {
	client *http.Client
}

// NewWebhookTransport tạo WebhookTransport với HTTP client dùng chung
func NewWebhookTransport() *WebhookTransport {
	return &WebhookTransport{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send POST payload JSON của event tới webhook URL của channel
func (t *WebhookTransport) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) error {
	webhookURL := channel.Config["url"]
	if webhookURL == "" {
		return fmt.Errorf("channel %s thiếu config url", channel.ID.Hex())
	}

	payload := map[string]interface{}{
		"eventId":   event.EventID,
		"type":      event.Type,
		"severity":  event.Severity,
		"tags":      event.Tags,
		"payload":   event.Payload,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range channel.Config {
		if name, ok := strings.CutPrefix(key, "header_"); ok {
			req.Header.Set(name, value)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
