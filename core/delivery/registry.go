package delivery

import (
	"context"
	"time"

	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/logger"
)

// SendOutcome là kết quả của một lần gửi qua channel.
// Outcome nhận một trong các giá trị của models.Outcome* constants.
type SendOutcome struct {
	Outcome     string
	ErrorDetail string
}

// ChannelRegistry giữ map transport theo kind của channel và thực hiện gửi
// với timeout giới hạn cho từng lần gửi. Transport bị treo quá timeout được
// tính là gửi thất bại, goroutine của transport được bỏ lại chạy nốt.
type ChannelRegistry struct {
	transports  map[string]Transport
	sendTimeout time.Duration
}

// NewChannelRegistry tạo registry rỗng với timeout cho mỗi lần gửi
func NewChannelRegistry(sendTimeout time.Duration) *ChannelRegistry {
	return &ChannelRegistry{
		transports:  make(map[string]Transport),
		sendTimeout: sendTimeout,
	}
}

// RegisterTransport gắn transport cho một kind channel
func (r *ChannelRegistry) RegisterTransport(kind string, transport Transport) {
	r.transports[kind] = transport
}

// Send gửi event qua một channel. Không trả về error: kết quả gửi (kể cả
// thất bại) luôn được diễn giải thành SendOutcome để ghi vào delivery_attempts.
//   - Channel bị disable: trả về skipped_disabled, không gọi transport
//   - Kind không có transport: trả về failed
//   - Transport chạy quá sendTimeout: trả về failed với detail timeout
func (r *ChannelRegistry) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) SendOutcome {
	log := logger.GetAppLogger().WithFields(map[string]interface{}{
		"channelId": channel.ID.Hex(),
		"kind":      channel.Kind,
		"eventId":   event.EventID,
	})

	if !channel.Enabled {
		log.Info("⏭️ Bỏ qua channel đã disable")
		return SendOutcome{Outcome: models.OutcomeSkippedDisabled}
	}

	transport, ok := r.transports[channel.Kind]
	if !ok {
		log.WithField("error", common.ErrChannelUnknown.Error()).Warn("⚠️ Không có transport cho kind channel")
		return SendOutcome{Outcome: models.OutcomeFailed, ErrorDetail: common.ErrChannelUnknown.Error()}
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	// Transport có thể không tôn trọng context (vd gomail), nên chạy trong
	// goroutine riêng và chờ trên select với timeout.
	done := make(chan error, 1)
	go func() {
		done <- transport.Send(sendCtx, channel, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.WithField("error", err.Error()).Warn("⚠️ Gửi notification thất bại")
			return SendOutcome{Outcome: models.OutcomeFailed, ErrorDetail: err.Error()}
		}
		log.Info("✅ Gửi notification thành công")
		return SendOutcome{Outcome: models.OutcomeSent}
	case <-sendCtx.Done():
		log.Warn("⚠️ Gửi notification quá thời gian cho phép")
		return SendOutcome{Outcome: models.OutcomeFailed, ErrorDetail: common.ErrSendTimeout.Error()}
	}
}
