package worker

import (
	"context"
	"time"

	"alert_center/core/api/services"
	"alert_center/core/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RunCleanupWorker worker dọn dẹp các escalation run đã kết thúc quá hạn retention.
// Xóa run kèm toàn bộ delivery attempts và run transitions của run đó.
type RunCleanupWorker struct {
	runService        *services.EscalationRunService
	attemptService    *services.DeliveryAttemptService
	transitionService *services.RunTransitionService
	interval          time.Duration // Khoảng thời gian giữa các lần chạy
	retentionDays     int           // Số ngày giữ lại run đã kết thúc
}

// NewRunCleanupWorker tạo mới RunCleanupWorker
// Tham số:
//   - interval: Khoảng thời gian giữa các lần chạy (mặc định: 1 giờ)
//   - retentionDays: Số ngày giữ lại run đã kết thúc (mặc định: 30 ngày)
func NewRunCleanupWorker(interval time.Duration, retentionDays int) (*RunCleanupWorker, error) {
	runService, err := services.NewEscalationRunService()
	if err != nil {
		return nil, err
	}
	attemptService, err := services.NewDeliveryAttemptService()
	if err != nil {
		return nil, err
	}
	transitionService, err := services.NewRunTransitionService()
	if err != nil {
		return nil, err
	}

	// Set defaults
	if interval < time.Minute {
		interval = 1 * time.Hour
	}
	if retentionDays < 1 {
		retentionDays = 30
	}

	return &RunCleanupWorker{
		runService:        runService,
		attemptService:    attemptService,
		transitionService: transitionService,
		interval:          interval,
		retentionDays:     retentionDays,
	}, nil
}

// Start bắt đầu background worker để dọn dẹp run quá hạn retention.
// Worker chạy định kỳ theo interval cho đến khi ctx bị hủy.
func (w *RunCleanupWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval":      w.interval.String(),
		"retentionDays": w.retentionDays,
	}).Info("🧹 [RUN_CLEANUP] Starting Run Cleanup Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("🧹 [RUN_CLEANUP] Run Cleanup Worker stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🧹 [RUN_CLEANUP] Panic khi dọn dẹp run, sẽ tiếp tục ở lần chạy tiếp theo")
					}
				}()

				w.cleanup(ctx)
			}()
		}
	}
}

// cleanup tìm các run đã kết thúc quá hạn và xóa run kèm ledger của chúng
func (w *RunCleanupWorker) cleanup(ctx context.Context) {
	log := logger.GetAppLogger()

	before := time.Now().AddDate(0, 0, -w.retentionDays).UnixMilli()
	runs, err := w.runService.FindTerminatedBefore(ctx, before)
	if err != nil {
		log.WithError(err).Error("🧹 [RUN_CLEANUP] Failed to find terminated runs")
		return
	}
	if len(runs) == 0 {
		return
	}

	runIDs := make([]primitive.ObjectID, 0, len(runs))
	for _, run := range runs {
		runIDs = append(runIDs, run.ID)
	}

	// Xóa ledger trước, run sau: nếu fail giữa chừng thì lần chạy sau vẫn thấy run để dọn tiếp
	deletedAttempts, err := w.attemptService.DeleteByRunIDs(ctx, runIDs)
	if err != nil {
		log.WithError(err).Error("🧹 [RUN_CLEANUP] Failed to delete delivery attempts")
		return
	}
	deletedTransitions, err := w.transitionService.DeleteByRunIDs(ctx, runIDs)
	if err != nil {
		log.WithError(err).Error("🧹 [RUN_CLEANUP] Failed to delete run transitions")
		return
	}
	deletedRuns, err := w.runService.DeleteByIDs(ctx, runIDs)
	if err != nil {
		log.WithError(err).Error("🧹 [RUN_CLEANUP] Failed to delete runs")
		return
	}

	log.WithFields(map[string]interface{}{
		"deletedRuns":        deletedRuns,
		"deletedAttempts":    deletedAttempts,
		"deletedTransitions": deletedTransitions,
		"retentionDays":      w.retentionDays,
	}).Info("🧹 [RUN_CLEANUP] Cleaned up terminated runs")
}
