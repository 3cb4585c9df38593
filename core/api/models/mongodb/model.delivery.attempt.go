package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Các kết quả có thể của một lần gửi
const (
	OutcomeSent            = "sent"
	OutcomeFailed          = "failed"
	OutcomeSkippedDisabled = "skipped_disabled"
)

// DeliveryAttempt - Bản ghi append-only cho mỗi lần gửi notification qua một channel.
// RunID là NilObjectID và StepIndex là nil cho các direct send (không qua escalation).
// ErrorDetail chỉ dùng cho audit nội bộ, không expose nguyên văn ra API.
type DeliveryAttempt struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	RunID       primitive.ObjectID `json:"runId,omitempty" bson:"runId,omitempty" index:"single:1"` // Run sở hữu attempt, Nil cho direct send
	EventID     string             `json:"eventId" bson:"eventId" index:"single:1"`
	ChannelID   primitive.ObjectID `json:"channelId" bson:"channelId" index:"single:1"`
	StepIndex   *int               `json:"stepIndex,omitempty" bson:"stepIndex,omitempty"` // nil cho direct send
	Outcome     string             `json:"outcome" bson:"outcome" index:"single:1"`        // sent, failed, skipped_disabled
	ErrorDetail string             `json:"-" bson:"errorDetail,omitempty"` // chuỗi lỗi transport thô, chỉ nằm trong Mongo
	CreatedAt   int64              `json:"createdAt" bson:"createdAt"`
	UpdatedAt   int64              `json:"updatedAt" bson:"updatedAt"`
}

// RunTransition - Bản ghi append-only cho mỗi lần chuyển trạng thái của run.
type RunTransition struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	RunID     primitive.ObjectID `json:"runId" bson:"runId" index:"single:1"`
	EventID   string             `json:"eventId" bson:"eventId" index:"single:1"`
	FromState string             `json:"fromState" bson:"fromState"`
	ToState   string             `json:"toState" bson:"toState"`
	StepIndex int                `json:"stepIndex" bson:"stepIndex"`          // Bước hiện tại tại thời điểm chuyển
	Actor     string             `json:"actor,omitempty" bson:"actor,omitempty"` // Actor gây ra transition (ack/cancel), rỗng nếu do timer
	CreatedAt int64              `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64              `json:"updatedAt" bson:"updatedAt"`
}
