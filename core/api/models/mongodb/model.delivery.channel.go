package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Các loại channel được hỗ trợ
const (
	ChannelKindEmail       = "email"
	ChannelKindSMS         = "sms"
	ChannelKindChatWebhook = "chat_webhook"
	ChannelKindPush        = "push"
)

// DeliveryChannel - Cấu hình một kênh gửi notification (email, sms, chat webhook, push)
// Config là map key-value tùy theo kind, đã được validate bởi CRUD layer trước khi engine đọc.
// Channel bị disable giữa chừng thì lần gửi tiếp theo sẽ cho kết quả skipped_disabled, không phải lỗi.
type DeliveryChannel struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerUserID primitive.ObjectID `json:"ownerUserId" bson:"ownerUserId" index:"single:1,compound:channel_name_owner_unique"` // Người dùng sở hữu channel (phân quyền)
	Name        string             `json:"name" bson:"name" index:"single:1,compound:channel_name_owner_unique" validate:"required"` // Tên channel phải unique trong 1 owner
	Kind        string             `json:"kind" bson:"kind" index:"single:1" validate:"required,channel_kind"`                 // email, sms, chat_webhook, push
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Config      map[string]string  `json:"config" bson:"config"` // Cấu hình transport theo kind (recipient, webhook url, device token, ...)
	Enabled     bool               `json:"enabled" bson:"enabled" index:"single:1"`
	CreatedAt   int64              `json:"createdAt" bson:"createdAt"`
	UpdatedAt   int64              `json:"updatedAt" bson:"updatedAt"`
}
