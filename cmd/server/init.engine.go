package main

import (
	"context"

	"alert_center/core/api/services"
	"alert_center/core/delivery"
	"alert_center/core/escalation"
	"alert_center/core/global"
	"alert_center/core/logger"
)

// InitEngine khởi tạo delivery registry, ledger, scheduler và dispatcher của engine.
// Rehydrate các run chưa kết thúc từ database để timer sống lại sau restart.
func InitEngine(ctx context.Context) (*escalation.Dispatcher, *escalation.Scheduler) {
	log := logger.GetAppLogger()
	cfg := global.ServerConfig

	runService, err := services.NewEscalationRunService()
	if err != nil {
		log.Fatalf("Failed to create escalation run service: %v", err)
	}
	chainService, err := services.NewEscalationChainService()
	if err != nil {
		log.Fatalf("Failed to create escalation chain service: %v", err)
	}
	channelService, err := services.NewDeliveryChannelService()
	if err != nil {
		log.Fatalf("Failed to create delivery channel service: %v", err)
	}
	ruleService, err := services.NewDeliveryRuleService()
	if err != nil {
		log.Fatalf("Failed to create delivery rule service: %v", err)
	}
	eventService, err := services.NewNotificationEventService()
	if err != nil {
		log.Fatalf("Failed to create notification event service: %v", err)
	}
	attemptService, err := services.NewDeliveryAttemptService()
	if err != nil {
		log.Fatalf("Failed to create delivery attempt service: %v", err)
	}
	transitionService, err := services.NewRunTransitionService()
	if err != nil {
		log.Fatalf("Failed to create run transition service: %v", err)
	}

	// Registry chứa các transport theo kind, transport nào thiếu config sẽ bị bỏ qua
	registry := delivery.NewChannelRegistryFromConfig(ctx, cfg)

	ledger := escalation.NewLedger(attemptService, transitionService, cfg.LedgerRetryMax)
	scheduler := escalation.NewScheduler(runService, chainService, channelService, eventService, registry, ledger, cfg.SendFanout)
	dispatcher := escalation.NewDispatcher(eventService, ruleService, channelService, runService, registry, ledger, scheduler, cfg.SendFanout)

	// Khôi phục các run pending/active từ database sau restart
	if err := scheduler.Rehydrate(ctx); err != nil {
		log.WithError(err).Error("Failed to rehydrate escalation runs")
	}

	return dispatcher, scheduler
}
