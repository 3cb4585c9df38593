package dto

// RuleConditionInput là điều kiện của rule trong request.
// Các trường để trống không tham gia điều kiện, các trường có giá trị được AND với nhau.
type RuleConditionInput struct {
	EventType  string            `json:"eventType,omitempty" bson:"eventType,omitempty"`
	Severities []string          `json:"severities,omitempty" bson:"severities,omitempty" validate:"omitempty,dive,severity"`
	Tags       map[string]string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// RuleTargetInput là đích đến của rule trong request.
// Chỉ một trong hai trường channelIds / chainId được set.
type RuleTargetInput struct {
	ChannelIDs []string `json:"channelIds,omitempty" bson:"channelIds,omitempty"` // ObjectID hex của các channel gửi trực tiếp
	ChainID    *string  `json:"chainId,omitempty" bson:"chainId,omitempty"`       // ObjectID hex của escalation chain
}

// DeliveryRuleCreateInput dùng cho tạo delivery rule.
// Đây là contract cho Frontend - Backend parse trực tiếp vào Model,
// DTO này định nghĩa cấu trúc dữ liệu cần gửi khi tạo rule.
type DeliveryRuleCreateInput struct {
	Priority    int                `json:"priority"`              // Thứ tự đánh giá, nhỏ hơn = ưu tiên hơn
	Description string             `json:"description,omitempty"` // Mô tả - Optional
	Condition   RuleConditionInput `json:"condition"`             // Điều kiện khớp event
	Target      RuleTargetInput    `json:"target"`                // Đích đến: channels hoặc chain
	Enabled     bool               `json:"enabled"`               // Rule có tham gia đánh giá không
}

// DeliveryRuleUpdateInput dùng cho cập nhật delivery rule.
// Chỉ các trường được gửi lên mới bị thay đổi.
type DeliveryRuleUpdateInput struct {
	Priority    *int                `json:"priority,omitempty" bson:"priority,omitempty"`
	Description *string             `json:"description,omitempty" bson:"description,omitempty"`
	Condition   *RuleConditionInput `json:"condition,omitempty" bson:"condition,omitempty"`
	Target      *RuleTargetInput    `json:"target,omitempty" bson:"target,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty" bson:"enabled,omitempty"`
}
