package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Các mức độ nghiêm trọng của event
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// NotificationEvent - Event đã nhận từ upstream producer, immutable sau khi tạo.
// EventID là idempotency key: submit lại cùng một eventId sẽ trả về kết quả của lần đầu,
// được đảm bảo bằng unique index trên eventId.
type NotificationEvent struct {
	ID        primitive.ObjectID     `json:"id,omitempty" bson:"_id,omitempty"`
	EventID   string                 `json:"eventId" bson:"eventId" index:"unique" validate:"required"` // Idempotency key từ producer
	Type      string                 `json:"type" bson:"type" index:"single:1" validate:"required"`
	Severity  string                 `json:"severity" bson:"severity" index:"single:1" validate:"required,severity"`
	Tags      map[string]string      `json:"tags,omitempty" bson:"tags,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
	CreatedAt int64                  `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64                  `json:"updatedAt" bson:"updatedAt"`
}
