package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EscalationStep - Một bước trong escalation chain: gửi đồng thời tới một nhóm channel,
// chờ acknowledgement trong TimeoutSeconds rồi mới chuyển sang bước tiếp theo.
type EscalationStep struct {
	ChannelIDs     []primitive.ObjectID `json:"channelIds" bson:"channelIds" validate:"required,min=1"` // Các channel được notify đồng thời trong bước này
	TimeoutSeconds int64                `json:"timeoutSeconds" bson:"timeoutSeconds" validate:"required,min=1"` // Thời gian chờ ack trước khi escalate
}

// EscalationChain - Chuỗi các bước escalation có thứ tự, không rỗng.
// Hết bước cuối mà vẫn không có ack thì run kết thúc ở trạng thái exhausted.
type EscalationChain struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerUserID primitive.ObjectID `json:"ownerUserId" bson:"ownerUserId" index:"single:1"` // Người dùng sở hữu chain
	Name        string             `json:"name" bson:"name" validate:"required"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Steps       []EscalationStep   `json:"steps" bson:"steps" validate:"required,min=1,dive"`
	CreatedAt   int64              `json:"createdAt" bson:"createdAt"`
	UpdatedAt   int64              `json:"updatedAt" bson:"updatedAt"`
}
