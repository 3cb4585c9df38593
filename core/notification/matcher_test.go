// Package notification - Test logic định tuyến: first match wins, NoMatch, điều kiện AND.
package notification

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "alert_center/core/api/models/mongodb"
)

func makeEvent(eventType, severity string, tags map[string]string) models.NotificationEvent {
	return models.NotificationEvent{
		EventID:  "evt-1",
		Type:     eventType,
		Severity: severity,
		Tags:     tags,
	}
}

func makeRule(priority int, cond models.RuleCondition) models.DeliveryRule {
	return models.DeliveryRule{
		ID:        primitive.NewObjectID(),
		Priority:  priority,
		Condition: cond,
		Target:    models.RuleTarget{ChannelIDs: []primitive.ObjectID{primitive.NewObjectID()}},
		Enabled:   true,
	}
}

func TestMatch_FirstMatchWins(t *testing.T) {
	ruleA := makeRule(1, models.RuleCondition{EventType: "disk_full"})
	ruleB := makeRule(2, models.RuleCondition{EventType: "disk_full"})

	event := makeEvent("disk_full", models.SeverityCritical, nil)
	result := Match(event, []models.DeliveryRule{ruleA, ruleB})

	if !result.Matched {
		t.Fatal("Match phải khớp khi có rule phù hợp")
	}
	if result.Rule.ID != ruleA.ID {
		t.Errorf("Rule đầu tiên khớp phải thắng, nhận được rule %s thay vì %s", result.Rule.ID.Hex(), ruleA.ID.Hex())
	}
}

func TestMatch_NoMatchKhongPhaiLoi(t *testing.T) {
	rules := []models.DeliveryRule{
		makeRule(1, models.RuleCondition{EventType: "disk_full"}),
	}

	event := makeEvent("cpu_high", models.SeverityWarning, nil)
	result := Match(event, rules)

	if result.Matched {
		t.Error("Event không khớp rule nào phải trả về Matched = false")
	}
}

func TestMatch_RulesRongTraVeNoMatch(t *testing.T) {
	event := makeEvent("disk_full", models.SeverityCritical, nil)
	result := Match(event, nil)
	if result.Matched {
		t.Error("Không có rule nào thì phải trả về NoMatch")
	}
}

func TestMatch_BoQuaRuleDisabled(t *testing.T) {
	disabled := makeRule(1, models.RuleCondition{EventType: "disk_full"})
	disabled.Enabled = false
	enabled := makeRule(2, models.RuleCondition{EventType: "disk_full"})

	event := makeEvent("disk_full", models.SeverityCritical, nil)
	result := Match(event, []models.DeliveryRule{disabled, enabled})

	if !result.Matched {
		t.Fatal("Rule enabled phía sau vẫn phải được đánh giá")
	}
	if result.Rule.ID != enabled.ID {
		t.Error("Rule disabled không được tham gia đánh giá")
	}
}

func TestMatch_ConditionRongKhopMoiEvent(t *testing.T) {
	catchAll := makeRule(100, models.RuleCondition{})
	event := makeEvent("anything", models.SeverityInfo, map[string]string{"x": "y"})

	result := Match(event, []models.DeliveryRule{catchAll})
	if !result.Matched {
		t.Error("Rule với condition rỗng phải khớp mọi event")
	}
}

func TestMatch_SeverityMembership(t *testing.T) {
	rule := makeRule(1, models.RuleCondition{
		Severities: []string{models.SeverityWarning, models.SeverityCritical},
	})

	if !Match(makeEvent("e", models.SeverityCritical, nil), []models.DeliveryRule{rule}).Matched {
		t.Error("Severity nằm trong danh sách phải khớp")
	}
	if Match(makeEvent("e", models.SeverityInfo, nil), []models.DeliveryRule{rule}).Matched {
		t.Error("Severity ngoài danh sách không được khớp")
	}
}

func TestMatch_TagsPhaiDungGiaTri(t *testing.T) {
	rule := makeRule(1, models.RuleCondition{
		Tags: map[string]string{"team": "payments", "env": "prod"},
	})

	match := makeEvent("e", models.SeverityInfo, map[string]string{"team": "payments", "env": "prod", "extra": "ok"})
	if !Match(match, []models.DeliveryRule{rule}).Matched {
		t.Error("Event có đủ tag với đúng giá trị phải khớp (tag thừa không ảnh hưởng)")
	}

	wrongValue := makeEvent("e", models.SeverityInfo, map[string]string{"team": "payments", "env": "staging"})
	if Match(wrongValue, []models.DeliveryRule{rule}).Matched {
		t.Error("Tag sai giá trị không được khớp")
	}
}

func TestMatch_TagThieuLaFalseKhongPhaiLoi(t *testing.T) {
	rule := makeRule(1, models.RuleCondition{
		Tags: map[string]string{"team": "payments"},
	})

	// Event không có tags: mệnh đề tag là false, rule không khớp
	result := Match(makeEvent("e", models.SeverityInfo, nil), []models.DeliveryRule{rule})
	if result.Matched {
		t.Error("Event thiếu tag key phải làm rule không khớp")
	}
}

func TestMatch_DieuKienAND(t *testing.T) {
	rule := makeRule(1, models.RuleCondition{
		EventType:  "disk_full",
		Severities: []string{models.SeverityCritical},
		Tags:       map[string]string{"env": "prod"},
	})
	rules := []models.DeliveryRule{rule}

	full := makeEvent("disk_full", models.SeverityCritical, map[string]string{"env": "prod"})
	if !Match(full, rules).Matched {
		t.Error("Event thỏa mãn cả 3 mệnh đề phải khớp")
	}

	wrongType := makeEvent("cpu_high", models.SeverityCritical, map[string]string{"env": "prod"})
	if Match(wrongType, rules).Matched {
		t.Error("Một mệnh đề false làm cả condition false")
	}
}
