package models

import (
	"encoding/json"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDeliveryAttempt_JSONKhongLoChuoiLoiTransport(t *testing.T) {
	step := 1
	attempt := DeliveryAttempt{
		ID:          primitive.NewObjectID(),
		RunID:       primitive.NewObjectID(),
		EventID:     "evt-1",
		ChannelID:   primitive.NewObjectID(),
		StepIndex:   &step,
		Outcome:     OutcomeFailed,
		ErrorDetail: "dial tcp 10.0.0.5:443: i/o timeout",
	}

	raw, err := json.Marshal(attempt)
	if err != nil {
		t.Fatalf("Marshal trả về lỗi: %v", err)
	}

	body := string(raw)
	if strings.Contains(body, "errorDetail") || strings.Contains(body, "i/o timeout") {
		t.Errorf("Response không được chứa chuỗi lỗi transport thô, nhận được %s", body)
	}
	if !strings.Contains(body, `"outcome":"failed"`) {
		t.Errorf("Response phải giữ lại outcome phân loại, nhận được %s", body)
	}
}
