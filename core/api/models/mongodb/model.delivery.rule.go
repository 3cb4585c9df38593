package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RuleCondition - Điều kiện của một rule, đánh giá theo AND trên các field của event.
// Field nào để trống thì không tham gia điều kiện.
// Tags so khớp theo kiểu membership: mọi cặp key/value trong condition phải có mặt trong tags của event.
type RuleCondition struct {
	EventType  string            `json:"eventType,omitempty" bson:"eventType,omitempty"`   // So khớp chính xác event type
	Severities []string          `json:"severities,omitempty" bson:"severities,omitempty"` // Event severity phải nằm trong danh sách này
	Tags       map[string]string `json:"tags,omitempty" bson:"tags,omitempty"`             // Các cặp tag bắt buộc phải có trên event
}

// RuleTarget - Đích đến của rule: hoặc danh sách channel gửi trực tiếp, hoặc một escalation chain.
// Hai trường loại trừ lẫn nhau, CRUD layer đảm bảo chỉ một trong hai được set.
type RuleTarget struct {
	ChannelIDs []primitive.ObjectID `json:"channelIds,omitempty" bson:"channelIds,omitempty"`                                // Gửi trực tiếp tới các channel này
	ChainID    *primitive.ObjectID  `json:"chainId,omitempty" bson:"chainId,omitempty" validate:"omitempty,exists=escalation_chains"` // Hoặc bắt đầu escalation chain
}

// DeliveryRule - Rule định tuyến: event nào → gửi tới đâu.
// Rules được đánh giá theo priority tăng dần, rule đầu tiên khớp sẽ thắng (first match wins).
type DeliveryRule struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerUserID primitive.ObjectID `json:"ownerUserId" bson:"ownerUserId" index:"single:1"` // Người dùng sở hữu rule
	Priority    int                `json:"priority" bson:"priority" index:"single:1"`       // Thứ tự đánh giá, nhỏ hơn = ưu tiên hơn
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Condition   RuleCondition      `json:"condition" bson:"condition"`
	Target      RuleTarget         `json:"target" bson:"target"`
	Enabled     bool               `json:"enabled" bson:"enabled" index:"single:1"`
	CreatedAt   int64              `json:"createdAt" bson:"createdAt"`
	UpdatedAt   int64              `json:"updatedAt" bson:"updatedAt"`
}
