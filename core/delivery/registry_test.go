// Package delivery - Test ChannelRegistry: skip channel disabled, timeout, kind không có transport.
package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "alert_center/core/api/models/mongodb"
)

// fakeTransport là transport giả cho test, điều khiển được kết quả và độ trễ
type fakeTransport struct {
	err    error
	delay  time.Duration
	called bool
}

func (f *fakeTransport) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) error {
	f.called = true
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.err
}

func makeChannel(kind string, enabled bool) models.DeliveryChannel {
	return models.DeliveryChannel{
		ID:      primitive.NewObjectID(),
		Name:    "test-channel",
		Kind:    kind,
		Enabled: enabled,
		Config:  map[string]string{},
	}
}

func TestSend_ThanhCong(t *testing.T) {
	registry := NewChannelRegistry(time.Second)
	transport := &fakeTransport{}
	registry.RegisterTransport(models.ChannelKindEmail, transport)

	outcome := registry.Send(context.Background(), makeChannel(models.ChannelKindEmail, true), models.NotificationEvent{EventID: "e1"})

	if outcome.Outcome != models.OutcomeSent {
		t.Errorf("Gửi thành công phải trả về outcome %s, nhận được %s", models.OutcomeSent, outcome.Outcome)
	}
	if !transport.called {
		t.Error("Transport phải được gọi khi channel enabled")
	}
}

func TestSend_ChannelDisabledKhongGoiTransport(t *testing.T) {
	registry := NewChannelRegistry(time.Second)
	transport := &fakeTransport{}
	registry.RegisterTransport(models.ChannelKindEmail, transport)

	outcome := registry.Send(context.Background(), makeChannel(models.ChannelKindEmail, false), models.NotificationEvent{EventID: "e1"})

	if outcome.Outcome != models.OutcomeSkippedDisabled {
		t.Errorf("Channel disabled phải trả về outcome %s, nhận được %s", models.OutcomeSkippedDisabled, outcome.Outcome)
	}
	if transport.called {
		t.Error("Transport không được gọi khi channel disabled")
	}
}

func TestSend_TransportLoi(t *testing.T) {
	registry := NewChannelRegistry(time.Second)
	registry.RegisterTransport(models.ChannelKindSMS, &fakeTransport{err: errors.New("provider unreachable")})

	outcome := registry.Send(context.Background(), makeChannel(models.ChannelKindSMS, true), models.NotificationEvent{EventID: "e1"})

	if outcome.Outcome != models.OutcomeFailed {
		t.Errorf("Transport lỗi phải trả về outcome %s, nhận được %s", models.OutcomeFailed, outcome.Outcome)
	}
	if outcome.ErrorDetail != "provider unreachable" {
		t.Errorf("ErrorDetail phải giữ lại thông tin lỗi, nhận được %q", outcome.ErrorDetail)
	}
}

func TestSend_TimeoutTraVeFailed(t *testing.T) {
	registry := NewChannelRegistry(20 * time.Millisecond)
	registry.RegisterTransport(models.ChannelKindChatWebhook, &fakeTransport{delay: 500 * time.Millisecond})

	start := time.Now()
	outcome := registry.Send(context.Background(), makeChannel(models.ChannelKindChatWebhook, true), models.NotificationEvent{EventID: "e1"})
	elapsed := time.Since(start)

	if outcome.Outcome != models.OutcomeFailed {
		t.Errorf("Transport quá timeout phải trả về outcome %s, nhận được %s", models.OutcomeFailed, outcome.Outcome)
	}
	if outcome.ErrorDetail == "" {
		t.Error("Timeout phải có ErrorDetail")
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("Send phải trả về ngay khi hết timeout, mất %v", elapsed)
	}
}

func TestSend_KindKhongCoTransport(t *testing.T) {
	registry := NewChannelRegistry(time.Second)

	outcome := registry.Send(context.Background(), makeChannel(models.ChannelKindPush, true), models.NotificationEvent{EventID: "e1"})

	if outcome.Outcome != models.OutcomeFailed {
		t.Errorf("Kind không có transport phải trả về outcome %s, nhận được %s", models.OutcomeFailed, outcome.Outcome)
	}
}
