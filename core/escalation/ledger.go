// Package escalation chứa engine thực thi escalation chain: scheduler quản lý
// timer cho từng run, ledger ghi lại mọi lần gửi và chuyển trạng thái.
package escalation

import (
	"context"
	"math"
	"time"

	models "alert_center/core/api/models/mongodb"
	"alert_center/core/logger"
)

// attemptStore và transitionStore là phần ghi của các service ledger,
// tách thành interface để test không cần MongoDB
type attemptStore interface {
	InsertOne(ctx context.Context, data models.DeliveryAttempt) (models.DeliveryAttempt, error)
}

type transitionStore interface {
	InsertOne(ctx context.Context, data models.RunTransition) (models.RunTransition, error)
}

// Ledger ghi append-only các delivery attempt và run transition.
// Ghi thất bại được retry với exponential backoff; hết retry thì log lên
// error logger, engine vẫn tiếp tục chạy vì ledger không được phép chặn escalation.
type Ledger struct {
	attempts    attemptStore
	transitions transitionStore
	retryMax    int
}

// NewLedger tạo Ledger với số lần retry tối đa cho mỗi lần ghi
func NewLedger(attempts attemptStore, transitions transitionStore, retryMax int) *Ledger {
	if retryMax < 1 {
		retryMax = 1
	}
	return &Ledger{
		attempts:    attempts,
		transitions: transitions,
		retryMax:    retryMax,
	}
}

// RecordAttempt ghi một delivery attempt, retry khi thất bại
func (l *Ledger) RecordAttempt(ctx context.Context, attempt models.DeliveryAttempt) {
	err := l.withRetry(ctx, func() error {
		_, err := l.attempts.InsertOne(ctx, attempt)
		return err
	})
	if err != nil {
		logger.GetErrorLogger().WithFields(map[string]interface{}{
			"eventId":   attempt.EventID,
			"channelId": attempt.ChannelID.Hex(),
			"outcome":   attempt.Outcome,
			"error":     err.Error(),
		}).Error("❌ Ghi delivery attempt thất bại sau khi hết retry")
	}
}

// RecordTransition ghi một run transition, retry khi thất bại
func (l *Ledger) RecordTransition(ctx context.Context, transition models.RunTransition) {
	err := l.withRetry(ctx, func() error {
		_, err := l.transitions.InsertOne(ctx, transition)
		return err
	})
	if err != nil {
		logger.GetErrorLogger().WithFields(map[string]interface{}{
			"runId":   transition.RunID.Hex(),
			"eventId": transition.EventID,
			"toState": transition.ToState,
			"error":   err.Error(),
		}).Error("❌ Ghi run transition thất bại sau khi hết retry")
	}
}

// withRetry chạy fn với exponential backoff: 1s, 2s, 4s... giữa các lần thử
func (l *Ledger) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < l.retryMax; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == l.retryMax-1 {
			break
		}
		backoffSeconds := int64(math.Pow(2, float64(attempt)))
		select {
		case <-time.After(time.Duration(backoffSeconds) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
