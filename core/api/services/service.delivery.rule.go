package services

import (
	"context"
	"fmt"

	basesvc "alert_center/core/api/base/service"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeliveryRuleService là cấu trúc chứa các phương thức liên quan đến Delivery Rule
type DeliveryRuleService struct {
	*basesvc.BaseServiceMongoImpl[models.DeliveryRule]
}

// NewDeliveryRuleService tạo mới DeliveryRuleService
func NewDeliveryRuleService() (*DeliveryRuleService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.DeliveryRules)
	if !exist {
		return nil, fmt.Errorf("failed to get delivery_rules collection: %v", common.ErrNotFound)
	}

	return &DeliveryRuleService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.DeliveryRule](collection),
	}, nil
}

// FindEnabledSorted trả về tất cả rule đang enabled, sắp xếp theo priority tăng dần.
// Matcher đánh giá rules theo đúng thứ tự này, rule đầu tiên khớp sẽ thắng.
// Engine gọi lại hàm này cho mỗi event thay vì cache, để rule bị disable có hiệu lực ngay.
func (s *DeliveryRuleService) FindEnabledSorted(ctx context.Context) ([]models.DeliveryRule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}})
	return s.Find(ctx, bson.M{"enabled": true}, opts)
}
