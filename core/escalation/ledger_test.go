package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"

	models "alert_center/core/api/models/mongodb"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// flakyAttemptStore fail một số lần đầu rồi mới ghi thành công
type flakyAttemptStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	inserted []models.DeliveryAttempt
}

func (s *flakyAttemptStore) InsertOne(ctx context.Context, data models.DeliveryAttempt) (models.DeliveryAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return models.DeliveryAttempt{}, errors.New("mongo tạm thời không ghi được")
	}
	s.inserted = append(s.inserted, data)
	return data, nil
}

type flakyTransitionStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	inserted []models.RunTransition
}

func (s *flakyTransitionStore) InsertOne(ctx context.Context, data models.RunTransition) (models.RunTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return models.RunTransition{}, errors.New("mongo tạm thời không ghi được")
	}
	s.inserted = append(s.inserted, data)
	return data, nil
}

func TestRecordAttempt_GhiThanhCongLanDau(t *testing.T) {
	attempts := &flakyAttemptStore{}
	ledger := NewLedger(attempts, &flakyTransitionStore{}, 3)

	ledger.RecordAttempt(context.Background(), models.DeliveryAttempt{
		EventID:   "evt-ledger-1",
		ChannelID: primitive.NewObjectID(),
		Outcome:   models.OutcomeSent,
	})

	assert.Equal(t, 1, attempts.calls, "chỉ được gọi InsertOne một lần khi thành công ngay")
	assert.Len(t, attempts.inserted, 1, "attempt phải được ghi vào store")
	assert.Equal(t, "evt-ledger-1", attempts.inserted[0].EventID)
}

func TestRecordAttempt_RetryRoiThanhCong(t *testing.T) {
	// Lần đầu fail, lần retry thứ hai thành công (backoff 1s)
	attempts := &flakyAttemptStore{failures: 1}
	ledger := NewLedger(attempts, &flakyTransitionStore{}, 3)

	ledger.RecordAttempt(context.Background(), models.DeliveryAttempt{
		EventID:   "evt-ledger-2",
		ChannelID: primitive.NewObjectID(),
		Outcome:   models.OutcomeFailed,
	})

	assert.Equal(t, 2, attempts.calls, "phải retry sau lần fail đầu")
	assert.Len(t, attempts.inserted, 1, "attempt phải được ghi sau retry")
}

func TestRecordAttempt_HetRetryKhongPanic(t *testing.T) {
	// retryMax 1: fail một lần là hết, chỉ log lỗi chứ không panic, không chặn engine
	attempts := &flakyAttemptStore{failures: 100}
	ledger := NewLedger(attempts, &flakyTransitionStore{}, 1)

	ledger.RecordAttempt(context.Background(), models.DeliveryAttempt{
		EventID:   "evt-ledger-3",
		ChannelID: primitive.NewObjectID(),
		Outcome:   models.OutcomeFailed,
	})

	assert.Equal(t, 1, attempts.calls)
	assert.Empty(t, attempts.inserted, "không được ghi gì khi mọi lần thử đều fail")
}

func TestRecordTransition_ContextHuyThiDungRetry(t *testing.T) {
	transitions := &flakyTransitionStore{failures: 100}
	ledger := NewLedger(&flakyAttemptStore{}, transitions, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ledger.RecordTransition(ctx, models.RunTransition{
		RunID:   primitive.NewObjectID(),
		EventID: "evt-ledger-4",
		ToState: models.RunStateActive,
	})

	assert.Equal(t, 1, transitions.calls, "context đã hủy thì không được retry tiếp")
}

func TestNewLedger_RetryMaxToiThieuLaMot(t *testing.T) {
	ledger := NewLedger(&flakyAttemptStore{}, &flakyTransitionStore{}, 0)
	assert.Equal(t, 1, ledger.retryMax, "retryMax dưới 1 phải được nâng lên 1")
}
