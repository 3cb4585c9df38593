package dto

import (
	models "alert_center/core/api/models/mongodb"
)

// EventSubmitInput dùng cho submit một notification event vào engine.
// EventID do phía phát event sinh ra và là khóa idempotency: submit lại
// cùng eventId không gây gửi lặp.
type EventSubmitInput struct {
	EventID  string                 `json:"eventId" validate:"required"`           // Khóa idempotency do nguồn event cấp
	Type     string                 `json:"type" validate:"required"`              // Loại event: disk_full, cpu_high, ...
	Severity string                 `json:"severity" validate:"required,severity"` // info, warning, critical
	Tags     map[string]string      `json:"tags,omitempty"`                        // Metadata dùng cho rule matching
	Payload  map[string]interface{} `json:"payload,omitempty"`                     // Nội dung tự do, truyền nguyên vẹn tới channel
}

// RunAckInput dùng cho acknowledge một escalation run
type RunAckInput struct {
	AckedBy string `json:"ackedBy" validate:"required"` // Định danh người/hệ thống xác nhận
}

// RunCancelInput dùng cho hủy chủ động một escalation run
type RunCancelInput struct {
	CancelledBy string `json:"cancelledBy" validate:"required"` // Định danh người/hệ thống hủy
}

// SubmitResponse là kết quả trả về khi submit event
type SubmitResponse struct {
	Event     models.NotificationEvent  `json:"event"`
	Duplicate bool                      `json:"duplicate"`          // Event id đã tồn tại, không có dispatch mới
	Matched   bool                      `json:"matched"`            // Có rule nào khớp không
	RuleID    string                    `json:"ruleId,omitempty"`   // Rule đã khớp (hex)
	Attempts  []models.DeliveryAttempt  `json:"attempts,omitempty"` // Các direct send đã thực hiện
	Run       *models.EscalationRun     `json:"run,omitempty"`      // Run đang chạy hoặc mới tạo
}

// RunSnapshot là trạng thái đầy đủ của một run kèm lịch sử attempt và transition
type RunSnapshot struct {
	Run         models.EscalationRun     `json:"run"`
	Attempts    []models.DeliveryAttempt `json:"attempts"`
	Transitions []models.RunTransition   `json:"transitions"`
}
