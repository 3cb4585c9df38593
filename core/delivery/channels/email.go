// Package channels chứa các transport implementation cho từng loại delivery channel.
package channels

import (
	"context"
	"fmt"

	models "alert_center/core/api/models/mongodb"

	"gopkg.in/gomail.v2"
)

// EmailTransport gửi notification qua SMTP.
// Thông tin SMTP server lấy từ cấu hình ứng dụng, địa chỉ nhận lấy từ
// config của channel (key "recipient").
type EmailTransport struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewEmailTransport tạo EmailTransport với thông tin SMTP server
func NewEmailTransport(host string, port int, username, password, from string) *EmailTransport {
	return &EmailTransport{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	}
}

// Send gửi email thông báo event tới recipient của channel
func (t *EmailTransport) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) error {
	recipient := channel.Config["recipient"]
	if recipient == "" {
		return fmt.Errorf("channel %s thiếu config recipient", channel.ID.Hex())
	}

	subject := fmt.Sprintf("[%s] %s", event.Severity, event.Type)
	body := fmt.Sprintf(
		"<p>Notification event <b>%s</b></p><p>Type: %s<br>Severity: %s</p>",
		event.EventID, event.Type, event.Severity,
	)
	if msg, ok := event.Payload["message"].(string); ok && msg != "" {
		body += fmt.Sprintf("<p>%s</p>", msg)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", t.From)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	dialer := gomail.NewDialer(t.Host, t.Port, t.Username, t.Password)
	return dialer.DialAndSend(msg)
}
