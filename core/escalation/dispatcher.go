package escalation

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/logger"
	"alert_center/core/notification"
)

type eventWriter interface {
	InsertIfAbsent(ctx context.Context, event models.NotificationEvent) (models.NotificationEvent, bool, error)
}

type ruleStore interface {
	FindEnabledSorted(ctx context.Context) ([]models.DeliveryRule, error)
}

type runFinder interface {
	FindNonTerminalByEventID(ctx context.Context, eventID string) (models.EscalationRun, error)
}

type runStarter interface {
	Start(ctx context.Context, event models.NotificationEvent, chainID primitive.ObjectID) (models.EscalationRun, error)
}

// SubmitResult là kết quả xử lý một event được submit.
// Duplicate = true nghĩa là event id đã tồn tại, không có dispatch mới.
// Matched = false nghĩa là không rule nào khớp; event vẫn được persist.
type SubmitResult struct {
	Event     models.NotificationEvent
	Duplicate bool
	Matched   bool
	RuleID    primitive.ObjectID       // Rule đã khớp, Nil khi NoMatch
	Attempts  []models.DeliveryAttempt // Các direct send đã thực hiện (target là channels)
	Run       *models.EscalationRun    // Run đang chạy hoặc mới tạo (target là chain)
}

// Dispatcher là entry point xử lý event: persist idempotent, định tuyến qua
// rule matcher, rồi hoặc gửi trực tiếp hoặc bắt đầu escalation run.
type Dispatcher struct {
	events    eventWriter
	rules     ruleStore
	channels  channelStore
	runs      runFinder
	sender    Sender
	ledger    *Ledger
	scheduler runStarter
	fanout    int
}

// NewDispatcher tạo Dispatcher với các dependency đã wire sẵn
func NewDispatcher(events eventWriter, rules ruleStore, channels channelStore, runs runFinder, sender Sender, ledger *Ledger, scheduler runStarter, fanout int) *Dispatcher {
	if fanout < 1 {
		fanout = 1
	}
	return &Dispatcher{
		events:    events,
		rules:     rules,
		channels:  channels,
		runs:      runs,
		sender:    sender,
		ledger:    ledger,
		scheduler: scheduler,
		fanout:    fanout,
	}
}

// Submit nhận một notification event và xử lý trọn vòng định tuyến.
// Idempotent theo event id: submit lại event đã có chỉ trả về trạng thái
// hiện tại, không gửi lại và không tạo run mới.
func (d *Dispatcher) Submit(ctx context.Context, event models.NotificationEvent) (SubmitResult, error) {
	log := logger.GetAppLogger().WithFields(map[string]interface{}{
		"eventId":  event.EventID,
		"type":     event.Type,
		"severity": event.Severity,
	})

	stored, duplicate, err := d.events.InsertIfAbsent(ctx, event)
	if err != nil {
		return SubmitResult{}, err
	}

	if duplicate {
		log.Info("🔁 Event đã tồn tại, bỏ qua dispatch")
		result := SubmitResult{Event: stored, Duplicate: true}
		run, err := d.runs.FindNonTerminalByEventID(ctx, stored.EventID)
		if err == nil {
			result.Run = &run
		} else if !errors.Is(err, common.ErrNotFound) {
			return SubmitResult{}, err
		}
		return result, nil
	}

	rules, err := d.rules.FindEnabledSorted(ctx)
	if err != nil {
		return SubmitResult{}, err
	}

	match := notification.Match(stored, rules)
	if !match.Matched {
		log.Info("🔍 Không rule nào khớp, event chỉ được lưu lại")
		return SubmitResult{Event: stored}, nil
	}

	log.WithFields(map[string]interface{}{
		"ruleId":   match.Rule.ID.Hex(),
		"priority": match.Rule.Priority,
	}).Info("🎯 Event khớp rule")

	// Target là chain: bắt đầu escalation run
	if match.Target.ChainID != nil {
		run, err := d.scheduler.Start(ctx, stored, *match.Target.ChainID)
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{
			Event:   stored,
			Matched: true,
			RuleID:  match.Rule.ID,
			Run:     &run,
		}, nil
	}

	// Target là channels: gửi trực tiếp một lần, không escalation
	attempts := d.directSend(ctx, stored, match.Target.ChannelIDs)
	return SubmitResult{
		Event:    stored,
		Matched:  true,
		RuleID:   match.Rule.ID,
		Attempts: attempts,
	}, nil
}

// directSend gửi event tới các channel với fan-out giới hạn và ghi attempt
// cho từng channel. Attempt của direct send có RunID Nil và StepIndex nil.
func (d *Dispatcher) directSend(ctx context.Context, event models.NotificationEvent, channelIDs []primitive.ObjectID) []models.DeliveryAttempt {
	channels, err := d.channels.FindByIDs(ctx, channelIDs)
	if err != nil {
		logger.GetErrorLogger().WithFields(map[string]interface{}{
			"eventId": event.EventID,
			"error":   err.Error(),
		}).Error("❌ Không đọc được channel cho direct send")
		return nil
	}

	sem := make(chan struct{}, d.fanout)
	var wg sync.WaitGroup
	attempts := make([]models.DeliveryAttempt, len(channels))

	for i, channel := range channels {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ch models.DeliveryChannel) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := d.sender.Send(ctx, ch, event)
			attempt := models.DeliveryAttempt{
				EventID:     event.EventID,
				ChannelID:   ch.ID,
				Outcome:     outcome.Outcome,
				ErrorDetail: outcome.ErrorDetail,
			}
			d.ledger.RecordAttempt(ctx, attempt)
			attempts[i] = attempt
		}(i, channel)
	}

	wg.Wait()
	return attempts
}
