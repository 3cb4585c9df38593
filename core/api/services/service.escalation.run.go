package services

import (
	"context"
	"fmt"
	"time"

	basesvc "alert_center/core/api/base/service"
	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EscalationRunService là cấu trúc chứa các phương thức liên quan đến Escalation Run
type EscalationRunService struct {
	*basesvc.BaseServiceMongoImpl[models.EscalationRun]
}

// NewEscalationRunService tạo mới EscalationRunService
func NewEscalationRunService() (*EscalationRunService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.EscalationRuns)
	if !exist {
		return nil, fmt.Errorf("failed to get escalation_runs collection: %v", common.ErrNotFound)
	}

	return &EscalationRunService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.EscalationRun](collection),
	}, nil
}

// FindNonTerminalByEventID tìm run chưa kết thúc của một event.
// Mỗi event chỉ có tối đa một run pending/active tại một thời điểm.
func (s *EscalationRunService) FindNonTerminalByEventID(ctx context.Context, eventID string) (models.EscalationRun, error) {
	filter := bson.M{
		"eventId": eventID,
		"state":   bson.M{"$in": models.NonTerminalRunStates},
	}
	return s.FindOne(ctx, filter, nil)
}

// FindNonTerminal trả về tất cả run pending/active, dùng khi rehydrate sau restart
func (s *EscalationRunService) FindNonTerminal(ctx context.Context) ([]models.EscalationRun, error) {
	filter := bson.M{"state": bson.M{"$in": models.NonTerminalRunStates}}
	return s.Find(ctx, filter, nil)
}

// CreateRun tạo run mới ở trạng thái pending tại bước 0
func (s *EscalationRunService) CreateRun(ctx context.Context, eventID string, chainID primitive.ObjectID) (models.EscalationRun, error) {
	run := models.EscalationRun{
		EventID:     eventID,
		ChainID:     chainID,
		CurrentStep: 0,
		State:       models.RunStatePending,
	}
	return s.InsertOne(ctx, run)
}

// ActivateStep chuyển run sang active tại stepIndex với deadline mới, theo kiểu
// compare-and-swap: chỉ áp dụng khi run đang ở một trong các trạng thái fromStates.
// Trả về ErrNotFound khi run đã chuyển trạng thái trước đó (stale transition).
func (s *EscalationRunService) ActivateStep(ctx context.Context, runID primitive.ObjectID, fromStates []string, stepIndex int, deadline int64) (models.EscalationRun, error) {
	filter := bson.M{
		"_id":   runID,
		"state": bson.M{"$in": fromStates},
	}
	update := bson.M{
		"$set": bson.M{
			"state":       models.RunStateActive,
			"currentStep": stepIndex,
			"deadline":    deadline,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return s.FindOneAndUpdate(ctx, filter, update, opts)
}

// SetStepDeadline chốt deadline cho bước đã dispatch xong, CAS trên cặp
// (state, currentStep): chỉ áp dụng khi run vẫn active đúng tại stepIndex.
// Trả về ErrNotFound khi run đã chuyển trạng thái trong lúc dispatch.
func (s *EscalationRunService) SetStepDeadline(ctx context.Context, runID primitive.ObjectID, stepIndex int, deadline int64) (models.EscalationRun, error) {
	filter := bson.M{
		"_id":         runID,
		"state":       models.RunStateActive,
		"currentStep": stepIndex,
	}
	update := bson.M{
		"$set": bson.M{"deadline": deadline},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return s.FindOneAndUpdate(ctx, filter, update, opts)
}

// MarkResolved chuyển run sang resolved với thông tin actor, CAS trên trạng thái pending/active
func (s *EscalationRunService) MarkResolved(ctx context.Context, runID primitive.ObjectID, actor string) (models.EscalationRun, error) {
	filter := bson.M{
		"_id":   runID,
		"state": bson.M{"$in": models.NonTerminalRunStates},
	}
	update := bson.M{
		"$set": bson.M{
			"state":    models.RunStateResolved,
			"deadline": int64(0),
			"resolution": models.RunResolution{
				AckedBy: actor,
				AckedAt: time.Now().UnixMilli(),
			},
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return s.FindOneAndUpdate(ctx, filter, update, opts)
}

// MarkExhausted chuyển run sang exhausted, CAS trên trạng thái active
func (s *EscalationRunService) MarkExhausted(ctx context.Context, runID primitive.ObjectID) (models.EscalationRun, error) {
	filter := bson.M{
		"_id":   runID,
		"state": models.RunStateActive,
	}
	update := bson.M{
		"$set": bson.M{
			"state":    models.RunStateExhausted,
			"deadline": int64(0),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return s.FindOneAndUpdate(ctx, filter, update, opts)
}

// MarkCancelled chuyển run sang cancelled, CAS trên trạng thái pending/active
func (s *EscalationRunService) MarkCancelled(ctx context.Context, runID primitive.ObjectID) (models.EscalationRun, error) {
	filter := bson.M{
		"_id":   runID,
		"state": bson.M{"$in": models.NonTerminalRunStates},
	}
	update := bson.M{
		"$set": bson.M{
			"state":    models.RunStateCancelled,
			"deadline": int64(0),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return s.FindOneAndUpdate(ctx, filter, update, opts)
}

// FindTerminatedBefore tìm các run đã kết thúc có updatedAt cũ hơn mốc cho trước.
// Worker dọn dẹp cần danh sách ID để xóa kèm attempts và transitions của run.
func (s *EscalationRunService) FindTerminatedBefore(ctx context.Context, before int64) ([]models.EscalationRun, error) {
	filter := bson.M{
		"state":     bson.M{"$nin": models.NonTerminalRunStates},
		"updatedAt": bson.M{"$lt": before},
	}
	return s.Find(ctx, filter, nil)
}

// DeleteByIDs xóa các run theo danh sách ID
func (s *EscalationRunService) DeleteByIDs(ctx context.Context, runIDs []primitive.ObjectID) (int64, error) {
	if len(runIDs) == 0 {
		return 0, nil
	}
	return s.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": runIDs}})
}
