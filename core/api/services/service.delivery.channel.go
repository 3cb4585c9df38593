package services

import (
	"context"
	"fmt"

	basesvc "alert_center/core/api/base/service"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryChannelService là cấu trúc chứa các phương thức liên quan đến Delivery Channel
type DeliveryChannelService struct {
	*basesvc.BaseServiceMongoImpl[models.DeliveryChannel]
}

// NewDeliveryChannelService tạo mới DeliveryChannelService
func NewDeliveryChannelService() (*DeliveryChannelService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.DeliveryChannels)
	if !exist {
		return nil, fmt.Errorf("failed to get delivery_channels collection: %v", common.ErrNotFound)
	}

	return &DeliveryChannelService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.DeliveryChannel](collection),
	}, nil
}

// FindByIDs tìm các channel theo danh sách ID.
// Engine đọc lại channel trên mỗi lần dispatch (không cache) để nhận biết
// channel bị disable giữa chừng một run.
func (s *DeliveryChannelService) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.DeliveryChannel, error) {
	if len(ids) == 0 {
		return []models.DeliveryChannel{}, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
}

// FindByOwner tìm tất cả channels của một owner
func (s *DeliveryChannelService) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.DeliveryChannel, error) {
	return s.Find(ctx, bson.M{"ownerUserId": ownerID}, nil)
}

// IsReferenced kiểm tra channel có đang được rule hoặc chain nào tham chiếu không.
// Channel đang được tham chiếu thì không được xóa.
func (s *DeliveryChannelService) IsReferenced(ctx context.Context, channelID primitive.ObjectID) (bool, error) {
	ruleCollection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.DeliveryRules)
	if !exist {
		return false, fmt.Errorf("failed to get delivery_rules collection: %v", common.ErrNotFound)
	}
	count, err := ruleCollection.CountDocuments(ctx, bson.M{"target.channelIds": channelID})
	if err != nil {
		return false, common.ConvertMongoError(err)
	}
	if count > 0 {
		return true, nil
	}

	chainCollection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.EscalationChains)
	if !exist {
		return false, fmt.Errorf("failed to get escalation_chains collection: %v", common.ErrNotFound)
	}
	count, err = chainCollection.CountDocuments(ctx, bson.M{"steps.channelIds": channelID})
	if err != nil {
		return false, common.ConvertMongoError(err)
	}
	return count > 0, nil
}

// DeleteById override để chặn xóa channel đang được rule/chain tham chiếu
func (s *DeliveryChannelService) DeleteById(ctx context.Context, id primitive.ObjectID) error {
	referenced, err := s.IsReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return common.NewError(
			common.ErrCodeBusinessOperation,
			"Không thể xóa channel vì đang được rule hoặc escalation chain tham chiếu",
			common.StatusConflict,
			nil,
		)
	}
	return s.BaseServiceMongoImpl.DeleteById(ctx, id)
}
