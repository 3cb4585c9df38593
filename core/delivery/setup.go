package delivery

import (
	"context"
	"time"

	"alert_center/config"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/delivery/channels"
	"alert_center/core/logger"
)

// NewChannelRegistryFromConfig tạo ChannelRegistry với đầy đủ transport
// theo cấu hình ứng dụng. Transport nào thiếu cấu hình sẽ bị bỏ qua (channel
// kind đó sẽ trả về failed khi gửi), không chặn khởi động server.
func NewChannelRegistryFromConfig(ctx context.Context, cfg *config.Configuration) *ChannelRegistry {
	log := logger.GetAppLogger()
	registry := NewChannelRegistry(time.Duration(cfg.SendTimeoutSeconds) * time.Second)

	if cfg.SMTPHost != "" {
		registry.RegisterTransport(models.ChannelKindEmail, channels.NewEmailTransport(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom,
		))
	} else {
		log.Warn("⚠️ SMTP chưa được cấu hình, bỏ qua email transport")
	}

	if cfg.SMSProviderURL != "" {
		registry.RegisterTransport(models.ChannelKindSMS, channels.NewSMSTransport(
			cfg.SMSProviderURL, cfg.SMSProviderKey, cfg.SMSProviderToken,
		))
	} else {
		log.Warn("⚠️ SMS provider chưa được cấu hình, bỏ qua sms transport")
	}

	// Webhook không cần cấu hình ngoài, luôn sẵn sàng
	registry.RegisterTransport(models.ChannelKindChatWebhook, channels.NewWebhookTransport())

	if cfg.FirebaseProjectID != "" && cfg.FirebaseCredentialsPath != "" {
		push, err := channels.NewPushTransport(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.WithField("error", err.Error()).Warn("⚠️ Không khởi tạo được Firebase, bỏ qua push transport")
		} else {
			registry.RegisterTransport(models.ChannelKindPush, push)
		}
	} else {
		log.Warn("⚠️ Firebase chưa được cấu hình, bỏ qua push transport")
	}

	return registry
}
