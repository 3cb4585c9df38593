// Package notification chứa logic định tuyến event: đánh giá các delivery rule
// và chọn đích đến cho một notification event.
package notification

import (
	models "alert_center/core/api/models/mongodb"
)

// MatchResult - Kết quả định tuyến cho một event.
// Matched = false nghĩa là không rule nào khớp (NoMatch). Đây là kết quả hợp lệ,
// không phải lỗi; caller tự quyết định fallback.
type MatchResult struct {
	Matched bool
	Rule    models.DeliveryRule // Rule đã khớp (chỉ có nghĩa khi Matched)
	Target  models.RuleTarget   // Đích đến của rule đã khớp
}

// Match đánh giá các rule theo thứ tự đã cho (caller sắp xếp theo priority tăng dần)
// và trả về target của rule đầu tiên có condition khớp với event.
// Hàm thuần túy, không I/O, không bao giờ lỗi với event hợp lệ.
func Match(event models.NotificationEvent, rules []models.DeliveryRule) MatchResult {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if conditionMatches(event, rule.Condition) {
			return MatchResult{
				Matched: true,
				Rule:    rule,
				Target:  rule.Target,
			}
		}
	}
	return MatchResult{}
}

// conditionMatches đánh giá condition theo AND trên các field có set.
// Field không có trên event (ví dụ tag key không tồn tại) làm mệnh đề đó false,
// không gây lỗi.
func conditionMatches(event models.NotificationEvent, cond models.RuleCondition) bool {
	if cond.EventType != "" && cond.EventType != event.Type {
		return false
	}

	if len(cond.Severities) > 0 {
		found := false
		for _, sev := range cond.Severities {
			if sev == event.Severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Mọi cặp tag trong condition phải có mặt trên event với đúng giá trị
	for key, want := range cond.Tags {
		got, ok := event.Tags[key]
		if !ok || got != want {
			return false
		}
	}

	return true
}
