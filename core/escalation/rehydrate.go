package escalation

import (
	"context"

	models "alert_center/core/api/models/mongodb"
	"alert_center/core/logger"
)

// Rehydrate dựng lại timer in-memory cho các run chưa kết thúc sau khi restart.
// Run active được re-arm đúng deadline đã persist, không bao giờ gia hạn;
// deadline đã qua trong lúc downtime làm timer nổ ngay và leo thang luôn.
// Run pending (restart giữa lúc tạo run và dispatch bước 0) được dispatch lại.
// Run active với deadline = 0 là run crash giữa lúc dispatch một bước, bước đó
// được gửi lại rồi mới chốt deadline.
func (s *Scheduler) Rehydrate(ctx context.Context) error {
	log := logger.GetAppLogger()

	runs, err := s.runs.FindNonTerminal(ctx)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		log.Info("🌱 Không có escalation run nào cần rehydrate")
		return nil
	}

	log.WithField("count", len(runs)).Info("🌱 Rehydrate các escalation run chưa kết thúc")

	for _, run := range runs {
		runLog := log.WithFields(map[string]interface{}{
			"runId":   run.ID.Hex(),
			"eventId": run.EventID,
			"state":   run.State,
			"step":    run.CurrentStep,
		})

		switch {
		case run.State == models.RunStatePending:
			if err := s.redispatchStep(ctx, run, []string{models.RunStatePending}); err != nil {
				runLog.WithField("error", err.Error()).Error("❌ Không dispatch lại được run pending")
			}
		case run.State == models.RunStateActive && run.Deadline == 0:
			// Crash giữa lúc dispatch, deadline chưa được chốt
			runLog.Info("⏲️ Gửi lại bước đang dispatch dở")
			if err := s.redispatchStep(ctx, run, []string{models.RunStateActive}); err != nil {
				runLog.WithField("error", err.Error()).Error("❌ Không gửi lại được bước dở dang")
			}
		case run.State == models.RunStateActive:
			runLog.WithField("deadline", run.Deadline).Info("⏲️ Re-arm timer từ deadline đã persist")
			s.armTimer(run.ID, run.Deadline)
		}
	}

	return nil
}

// redispatchStep dispatch lại bước hiện tại của một run chưa hoàn tất dispatch
func (s *Scheduler) redispatchStep(ctx context.Context, run models.EscalationRun, fromStates []string) error {
	chain, err := s.chains.GetValidated(ctx, run.ChainID)
	if err != nil {
		return err
	}

	event, err := s.events.FindByEventID(ctx, run.EventID)
	if err != nil {
		return err
	}

	_, err = s.advanceToStep(ctx, run, chain, event, run.CurrentStep, fromStates)
	return err
}
