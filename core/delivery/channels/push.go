package channels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	models "alert_center/core/api/models/mongodb"
)

// PushTransport gửi push notification qua Firebase Cloud Messaging.
// Device token của thiết bị nhận lấy từ config của channel (key "deviceToken").
type PushTransport struct {
	client *messaging.Client
}

// NewPushTransport khởi tạo Firebase Admin SDK và tạo messaging client.
// Trả về lỗi nếu credentials file không tồn tại hoặc không hợp lệ.
func NewPushTransport(ctx context.Context, projectID, credentialsPath string) (*PushTransport, error) {
	if !filepath.IsAbs(credentialsPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		credentialsPath = filepath.Join(wd, credentialsPath)
	}

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("firebase credentials file not found: %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firebase Messaging client: %v", err)
	}

	return &PushTransport{client: client}, nil
}

// Send gửi push notification tới device token của channel
func (t *PushTransport) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) error {
	token := channel.Config["deviceToken"]
	if token == "" {
		return fmt.Errorf("channel %s thiếu config deviceToken", channel.ID.Hex())
	}

	body := event.Type
	if msg, ok := event.Payload["message"].(string); ok && msg != "" {
		body = msg
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: fmt.Sprintf("[%s] %s", event.Severity, event.Type),
			Body:  body,
		},
		Data: map[string]string{
			"eventId":  event.EventID,
			"type":     event.Type,
			"severity": event.Severity,
		},
	}

	_, err := t.client.Send(ctx, message)
	return err
}
