package dto

// EscalationStepInput là một bước trong escalation chain
type EscalationStepInput struct {
	ChannelIDs     []string `json:"channelIds" bson:"channelIds,omitempty" validate:"required,min=1"` // ObjectID hex của các channel nhận ở bước này
	TimeoutSeconds int64    `json:"timeoutSeconds" bson:"timeoutSeconds,omitempty" validate:"required,min=1"` // Thời gian chờ ack trước khi leo thang
}

// EscalationChainCreateInput dùng cho tạo escalation chain.
// Đây là contract cho Frontend - Backend parse trực tiếp vào Model,
// DTO này định nghĩa cấu trúc dữ liệu cần gửi khi tạo chain.
type EscalationChainCreateInput struct {
	Name        string                `json:"name" validate:"required"`
	Description string                `json:"description,omitempty"`
	Steps       []EscalationStepInput `json:"steps" validate:"required,min=1,dive"` // Các bước theo thứ tự leo thang
}

// EscalationChainUpdateInput dùng cho cập nhật escalation chain.
// Chỉ các trường được gửi lên mới bị thay đổi.
// Lưu ý: thay đổi steps không ảnh hưởng các run đang chạy đã qua bước đó.
type EscalationChainUpdateInput struct {
	Name        *string               `json:"name,omitempty" bson:"name,omitempty"`
	Description *string               `json:"description,omitempty" bson:"description,omitempty"`
	Steps       []EscalationStepInput `json:"steps,omitempty" bson:"steps,omitempty" validate:"omitempty,min=1,dive"`
}
