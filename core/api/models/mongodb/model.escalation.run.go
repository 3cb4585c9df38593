package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Các trạng thái của escalation run
const (
	RunStatePending   = "pending"   // Run đã tạo, bước 0 chưa được dispatch
	RunStateActive    = "active"    // Đã gửi cho bước hiện tại, timer đang chạy
	RunStateResolved  = "resolved"  // Đã có acknowledgement (terminal)
	RunStateExhausted = "exhausted" // Hết bước cuối mà không có ack (terminal)
	RunStateCancelled = "cancelled" // Bị hủy chủ động (terminal)
)

// RunResolution - Thông tin kết thúc của run (chỉ có khi resolved)
type RunResolution struct {
	AckedBy string `json:"ackedBy,omitempty" bson:"ackedBy,omitempty"` // Actor đã acknowledge
	AckedAt int64  `json:"ackedAt,omitempty" bson:"ackedAt,omitempty"` // Thời điểm acknowledge (unix ms)
}

// EscalationRun - Một lần thực thi chain cho một event.
// Deadline là hạn chót wall-clock (unix ms) của timer bước hiện tại, được persist
// để sau restart có thể re-arm timer đúng hạn cũ thay vì tính lại từ đầu.
type EscalationRun struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	EventID     string             `json:"eventId" bson:"eventId" index:"single:1"` // Event đã kích hoạt run này
	ChainID     primitive.ObjectID `json:"chainId" bson:"chainId" index:"single:1"`
	CurrentStep int                `json:"currentStep" bson:"currentStep"`       // Index bước hiện tại trong chain
	State       string             `json:"state" bson:"state" index:"single:1"`  // pending, active, resolved, exhausted, cancelled
	Deadline    int64              `json:"deadline,omitempty" bson:"deadline,omitempty"` // Hạn timer của bước hiện tại (unix ms), 0 khi terminal
	Resolution  *RunResolution     `json:"resolution,omitempty" bson:"resolution,omitempty"`
	CreatedAt   int64              `json:"createdAt" bson:"createdAt"`
	UpdatedAt   int64              `json:"updatedAt" bson:"updatedAt"`
}

// IsTerminal cho biết run đã ở trạng thái kết thúc hay chưa
func (r *EscalationRun) IsTerminal() bool {
	switch r.State {
	case RunStateResolved, RunStateExhausted, RunStateCancelled:
		return true
	}
	return false
}

// NonTerminalRunStates liệt kê các trạng thái chưa kết thúc, dùng cho query rehydrate
var NonTerminalRunStates = []string{RunStatePending, RunStateActive}
