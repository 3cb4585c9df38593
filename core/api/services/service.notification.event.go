package services

import (
	"context"
	"errors"
	"fmt"

	basesvc "alert_center/core/api/base/service"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/global"

	"go.mongodb.org/mongo-driver/bson"
)

// NotificationEventService là cấu trúc chứa các phương thức liên quan đến Notification Event
type NotificationEventService struct {
	*basesvc.BaseServiceMongoImpl[models.NotificationEvent]
}

// NewNotificationEventService tạo mới NotificationEventService
func NewNotificationEventService() (*NotificationEventService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.NotificationEvents)
	if !exist {
		return nil, fmt.Errorf("failed to get notification_events collection: %v", common.ErrNotFound)
	}

	return &NotificationEventService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.NotificationEvent](collection),
	}, nil
}

// FindByEventID tìm event theo idempotency key
func (s *NotificationEventService) FindByEventID(ctx context.Context, eventID string) (models.NotificationEvent, error) {
	return s.FindOne(ctx, bson.M{"eventId": eventID}, nil)
}

// InsertIfAbsent ghi event mới; nếu eventId đã tồn tại (unique index) thì trả về
// event đã lưu trước đó cùng cờ duplicate. Đây là nền của idempotent submit.
func (s *NotificationEventService) InsertIfAbsent(ctx context.Context, event models.NotificationEvent) (models.NotificationEvent, bool, error) {
	created, err := s.InsertOne(ctx, event)
	if err == nil {
		return created, false, nil
	}

	if errors.Is(err, common.ErrMongoDuplicate) || errors.Is(err, common.ErrDuplicate) {
		existing, findErr := s.FindByEventID(ctx, event.EventID)
		if findErr != nil {
			return existing, false, findErr
		}
		return existing, true, nil
	}

	return created, false, err
}
