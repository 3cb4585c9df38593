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
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeliveryAttemptService là cấu trúc chứa các phương thức liên quan đến Delivery Attempt
type DeliveryAttemptService struct {
	*basesvc.BaseServiceMongoImpl[models.DeliveryAttempt]
}

// NewDeliveryAttemptService tạo mới DeliveryAttemptService
func NewDeliveryAttemptService() (*DeliveryAttemptService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.DeliveryAttempts)
	if !exist {
		return nil, fmt.Errorf("failed to get delivery_attempts collection: %v", common.ErrNotFound)
	}

	return &DeliveryAttemptService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.DeliveryAttempt](collection),
	}, nil
}

// FindByRunID trả về các attempt của một run, theo thứ tự ghi
func (s *DeliveryAttemptService) FindByRunID(ctx context.Context, runID primitive.ObjectID) ([]models.DeliveryAttempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return s.Find(ctx, bson.M{"runId": runID}, opts)
}

// FindByEventID trả về các attempt của một event (bao gồm cả direct send)
func (s *DeliveryAttemptService) FindByEventID(ctx context.Context, eventID string) ([]models.DeliveryAttempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return s.Find(ctx, bson.M{"eventId": eventID}, opts)
}

// DeleteByRunIDs xóa attempts của các run đã bị dọn theo retention
func (s *DeliveryAttemptService) DeleteByRunIDs(ctx context.Context, runIDs []primitive.ObjectID) (int64, error) {
	if len(runIDs) == 0 {
		return 0, nil
	}
	return s.DeleteMany(ctx, bson.M{"runId": bson.M{"$in": runIDs}})
}

// RunTransitionService là cấu trúc chứa các phương thức liên quan đến Run Transition
type RunTransitionService struct {
	*basesvc.BaseServiceMongoImpl[models.RunTransition]
}

// NewRunTransitionService tạo mới RunTransitionService
func NewRunTransitionService() (*RunTransitionService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.RunTransitions)
	if !exist {
		return nil, fmt.Errorf("failed to get run_transitions collection: %v", common.ErrNotFound)
	}

	return &RunTransitionService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.RunTransition](collection),
	}, nil
}

// FindByRunID trả về lịch sử transition của một run, theo thứ tự ghi
func (s *RunTransitionService) FindByRunID(ctx context.Context, runID primitive.ObjectID) ([]models.RunTransition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return s.Find(ctx, bson.M{"runId": runID}, opts)
}

// DeleteByRunIDs xóa transitions của các run đã bị dọn theo retention
func (s *RunTransitionService) DeleteByRunIDs(ctx context.Context, runIDs []primitive.ObjectID) (int64, error) {
	if len(runIDs) == 0 {
		return 0, nil
	}
	return s.DeleteMany(ctx, bson.M{"runId": bson.M{"$in": runIDs}})
}
