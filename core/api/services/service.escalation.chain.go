package services

import (
	"context"
	"fmt"

	basesvc "alert_center/core/api/base/service"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/global"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EscalationChainService là cấu trúc chứa các phương thức liên quan đến Escalation Chain
type EscalationChainService struct {
	*basesvc.BaseServiceMongoImpl[models.EscalationChain]
}

// NewEscalationChainService tạo mới EscalationChainService
func NewEscalationChainService() (*EscalationChainService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.EscalationChains)
	if !exist {
		return nil, fmt.Errorf("failed to get escalation_chains collection: %v", common.ErrNotFound)
	}

	return &EscalationChainService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.EscalationChain](collection),
	}, nil
}

// GetValidated lấy chain theo ID và kiểm tra bất biến: chain phải có ít nhất 1 bước
// và mỗi bước có ít nhất 1 channel. CRUD layer đã validate khi tạo, nhưng scheduler
// vẫn kiểm tra lại trước khi start một run để không bao giờ chạy với chain rỗng.
func (s *EscalationChainService) GetValidated(ctx context.Context, id primitive.ObjectID) (models.EscalationChain, error) {
	chain, err := s.FindOneById(ctx, id)
	if err != nil {
		return chain, err
	}
	if len(chain.Steps) == 0 {
		return chain, common.ErrChainEmpty
	}
	for _, step := range chain.Steps {
		if len(step.ChannelIDs) == 0 || step.TimeoutSeconds <= 0 {
			return chain, common.ErrChainEmpty
		}
	}
	return chain, nil
}
