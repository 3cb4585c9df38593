package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	models "alert_center/core/api/models/mongodb"
)

// SMSTransport gửi notification qua một SMS provider HTTP API.
// Provider URL và credentials lấy từ cấu hình ứng dụng, số điện thoại nhận
// lấy từ config của channel (key "phone").
type SMSTransport struct {
	ProviderURL string
	APIKey      string
	APIToken    string
	client      *http.Client
}

// NewSMSTransport tạo SMSTransport với thông tin provider
func NewSMSTransport(providerURL, apiKey, apiToken string) *SMSTransport {
	return &SMSTransport{
		ProviderURL: providerURL,
		APIKey:      apiKey,
		APIToken:    apiToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Send gửi SMS thông báo event tới số điện thoại của channel
func (t *SMSTransport) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) error {
	if t.ProviderURL == "" {
		return fmt.Errorf("SMS provider chưa được cấu hình")
	}

	phone := channel.Config["phone"]
	if phone == "" {
		return fmt.Errorf("channel %s thiếu config phone", channel.ID.Hex())
	}

	message := fmt.Sprintf("[%s] %s (%s)", event.Severity, event.Type, event.EventID)
	if msg, ok := event.Payload["message"].(string); ok && msg != "" {
		message = fmt.Sprintf("[%s] %s", event.Severity, msg)
	}

	form := url.Values{}
	form.Set("to", phone)
	form.Set("message", message)
	form.Set("api_key", t.APIKey)
	form.Set("api_token", t.APIToken)

	req, err := http.NewRequestWithContext(ctx, "POST", t.ProviderURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("SMS provider returned status %d", resp.StatusCode)
	}

	return nil
}
