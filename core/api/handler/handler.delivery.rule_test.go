package handler

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "alert_center/core/api/models/mongodb"
)

func TestValidateRuleTarget_DungMotTrongHai(t *testing.T) {
	channelID := primitive.NewObjectID()
	chainID := primitive.NewObjectID()

	if err := validateRuleTarget(models.RuleTarget{ChannelIDs: []primitive.ObjectID{channelID}}); err != nil {
		t.Errorf("Target chỉ có channelIds phải hợp lệ, nhận được %v", err)
	}
	if err := validateRuleTarget(models.RuleTarget{ChainID: &chainID}); err != nil {
		t.Errorf("Target chỉ có chainId phải hợp lệ, nhận được %v", err)
	}
	if err := validateRuleTarget(models.RuleTarget{}); err == nil {
		t.Error("Target rỗng phải bị từ chối")
	}
	if err := validateRuleTarget(models.RuleTarget{ChannelIDs: []primitive.ObjectID{channelID}, ChainID: &chainID}); err == nil {
		t.Error("Target có cả channelIds lẫn chainId phải bị từ chối")
	}
}

func TestValidateRuleOwnership_ChannelKhacOwnerBiTuChoi(t *testing.T) {
	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()
	rule := models.DeliveryRule{OwnerUserID: owner}

	sameOwner := []models.DeliveryChannel{
		{ID: primitive.NewObjectID(), OwnerUserID: owner},
		{ID: primitive.NewObjectID(), OwnerUserID: owner},
	}
	if err := validateRuleOwnership(rule, sameOwner, nil); err != nil {
		t.Errorf("Channel cùng owner phải hợp lệ, nhận được %v", err)
	}

	mixed := []models.DeliveryChannel{
		{ID: primitive.NewObjectID(), OwnerUserID: owner},
		{ID: primitive.NewObjectID(), OwnerUserID: other},
	}
	if err := validateRuleOwnership(rule, mixed, nil); err == nil {
		t.Error("Channel thuộc owner khác phải bị từ chối")
	}
}

func TestValidateRuleOwnership_ChainKhacOwnerBiTuChoi(t *testing.T) {
	owner := primitive.NewObjectID()
	rule := models.DeliveryRule{OwnerUserID: owner}

	sameOwner := &models.EscalationChain{ID: primitive.NewObjectID(), OwnerUserID: owner}
	if err := validateRuleOwnership(rule, nil, sameOwner); err != nil {
		t.Errorf("Chain cùng owner phải hợp lệ, nhận được %v", err)
	}

	otherOwner := &models.EscalationChain{ID: primitive.NewObjectID(), OwnerUserID: primitive.NewObjectID()}
	if err := validateRuleOwnership(rule, nil, otherOwner); err == nil {
		t.Error("Chain thuộc owner khác phải bị từ chối")
	}
}
