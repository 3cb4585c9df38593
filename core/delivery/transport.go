// Package delivery cung cấp Channel Registry: một mặt gửi thống nhất
// trên các loại transport khác nhau (email, sms, chat webhook, push).
package delivery

import (
	"context"

	models "alert_center/core/api/models/mongodb"
)

// Transport là khả năng gửi notification của một loại channel.
// Mỗi kind (email, sms, chat_webhook, push) có đúng một implementation.
// Send trả về lỗi transport nguyên bản; registry chịu trách nhiệm
// phân loại kết quả và áp timeout.
type Transport interface {
	Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) error
}
