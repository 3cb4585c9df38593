package dto

// DeliveryChannelCreateInput dùng cho tạo delivery channel.
// Đây là contract cho Frontend - Backend parse trực tiếp vào Model,
// DTO này định nghĩa cấu trúc dữ liệu cần gửi khi tạo channel.
type DeliveryChannelCreateInput struct {
	Name        string            `json:"name" validate:"required"`                  // Tên channel, unique theo owner
	Kind        string            `json:"kind" validate:"required,channel_kind"`     // email, sms, chat_webhook, push
	Description string            `json:"description,omitempty"`                     // Mô tả - Optional
	Config      map[string]string `json:"config" validate:"required"`                // Cấu hình theo kind: email cần recipient, chat_webhook cần url, sms cần phone, push cần deviceToken
	Enabled     bool              `json:"enabled"`                                   // Channel có nhận notification không
}

// DeliveryChannelUpdateInput dùng cho cập nhật delivery channel.
// Chỉ các trường được gửi lên mới bị thay đổi.
type DeliveryChannelUpdateInput struct {
	Name        *string           `json:"name,omitempty" bson:"name,omitempty"`
	Description *string           `json:"description,omitempty" bson:"description,omitempty"`
	Config      map[string]string `json:"config,omitempty" bson:"config,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty" bson:"enabled,omitempty"`
}
