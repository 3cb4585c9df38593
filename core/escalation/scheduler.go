package escalation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/delivery"
	"alert_center/core/logger"
)

// Các interface store tách từ service layer để scheduler test được với fake in-memory

type runStore interface {
	FindOneById(ctx context.Context, id primitive.ObjectID) (models.EscalationRun, error)
	FindNonTerminalByEventID(ctx context.Context, eventID string) (models.EscalationRun, error)
	FindNonTerminal(ctx context.Context) ([]models.EscalationRun, error)
	CreateRun(ctx context.Context, eventID string, chainID primitive.ObjectID) (models.EscalationRun, error)
	ActivateStep(ctx context.Context, runID primitive.ObjectID, fromStates []string, stepIndex int, deadline int64) (models.EscalationRun, error)
	SetStepDeadline(ctx context.Context, runID primitive.ObjectID, stepIndex int, deadline int64) (models.EscalationRun, error)
	MarkResolved(ctx context.Context, runID primitive.ObjectID, actor string) (models.EscalationRun, error)
	MarkExhausted(ctx context.Context, runID primitive.ObjectID) (models.EscalationRun, error)
	MarkCancelled(ctx context.Context, runID primitive.ObjectID) (models.EscalationRun, error)
}

type chainStore interface {
	GetValidated(ctx context.Context, id primitive.ObjectID) (models.EscalationChain, error)
}

type channelStore interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.DeliveryChannel, error)
}

type eventStore interface {
	FindByEventID(ctx context.Context, eventID string) (models.NotificationEvent, error)
}

// Sender gửi event qua một channel, *delivery.ChannelRegistry thỏa mãn interface này
type Sender interface {
	Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) delivery.SendOutcome
}

// runHandle giữ timer in-memory của một run. Generation counter tăng mỗi lần
// arm lại hoặc hủy timer; timer fire với generation cũ bị bỏ qua.
type runHandle struct {
	gen   uint64
	timer *time.Timer
}

// Scheduler quản lý vòng đời các escalation run: dispatch từng bước, đặt timer
// chờ acknowledgement, leo thang khi hết hạn. Trạng thái run được persist qua
// runStore với các transition kiểu compare-and-swap; timer chỉ sống in-memory
// và được dựng lại từ deadline đã persist khi restart.
type Scheduler struct {
	runs     runStore
	chains   chainStore
	channels channelStore
	events   eventStore
	sender   Sender
	ledger   *Ledger
	fanout   int

	// retryDelay là khoảng chờ trước khi thử lại khi leo thang gặp lỗi tạm thời
	// (đọc chain/event thất bại, CAS advance lỗi hạ tầng)
	retryDelay time.Duration

	mu      sync.Mutex
	handles map[primitive.ObjectID]*runHandle
}

// NewScheduler tạo Scheduler với các store và sender đã wire sẵn.
// fanout là số lượng gửi song song tối đa trong một bước.
func NewScheduler(runs runStore, chains chainStore, channels channelStore, events eventStore, sender Sender, ledger *Ledger, fanout int) *Scheduler {
	if fanout < 1 {
		fanout = 1
	}
	return &Scheduler{
		runs:       runs,
		chains:     chains,
		channels:   channels,
		events:     events,
		sender:     sender,
		ledger:     ledger,
		fanout:     fanout,
		retryDelay: 5 * time.Second,
		handles:    make(map[primitive.ObjectID]*runHandle),
	}
}

// Start bắt đầu escalation run cho một event. Idempotent theo event id: nếu đã
// có run chưa kết thúc cho event này thì trả về run đó, không tạo mới.
// Bước 0 được dispatch đồng bộ trước khi trả về.
func (s *Scheduler) Start(ctx context.Context, event models.NotificationEvent, chainID primitive.ObjectID) (models.EscalationRun, error) {
	existing, err := s.runs.FindNonTerminalByEventID(ctx, event.EventID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return models.EscalationRun{}, err
	}

	chain, err := s.chains.GetValidated(ctx, chainID)
	if err != nil {
		return models.EscalationRun{}, err
	}

	run, err := s.runs.CreateRun(ctx, event.EventID, chainID)
	if err != nil {
		return models.EscalationRun{}, err
	}

	s.ledger.RecordTransition(ctx, models.RunTransition{
		RunID:     run.ID,
		EventID:   run.EventID,
		FromState: "",
		ToState:   models.RunStatePending,
		StepIndex: 0,
	})

	logger.GetAppLogger().WithFields(map[string]interface{}{
		"runId":   run.ID.Hex(),
		"eventId": run.EventID,
		"chainId": chainID.Hex(),
		"steps":   len(chain.Steps),
	}).Info("🚀 Bắt đầu escalation run")

	updated, err := s.advanceToStep(ctx, run, chain, event, 0, []string{models.RunStatePending})
	if err != nil {
		return models.EscalationRun{}, err
	}
	if updated.ID.IsZero() {
		// Run đã chuyển trạng thái trong lúc dispatch (vd ack ngay lập tức)
		return s.runs.FindOneById(ctx, run.ID)
	}
	return updated, nil
}

// Acknowledge xác nhận đã xử lý run, chuyển sang resolved và hủy timer.
// Idempotent: run đã kết thúc thì trả về trạng thái hiện tại, không lỗi.
func (s *Scheduler) Acknowledge(ctx context.Context, runID primitive.ObjectID, actor string) (models.EscalationRun, error) {
	run, err := s.runs.FindOneById(ctx, runID)
	if err != nil {
		return models.EscalationRun{}, err
	}
	if run.IsTerminal() {
		return run, nil
	}

	updated, err := s.runs.MarkResolved(ctx, runID, actor)
	if errors.Is(err, common.ErrNotFound) {
		// Thua race với một transition khác, trả về trạng thái mới nhất
		return s.runs.FindOneById(ctx, runID)
	}
	if err != nil {
		return models.EscalationRun{}, err
	}

	s.invalidate(runID)
	s.ledger.RecordTransition(ctx, models.RunTransition{
		RunID:     runID,
		EventID:   run.EventID,
		FromState: run.State,
		ToState:   models.RunStateResolved,
		StepIndex: run.CurrentStep,
		Actor:     actor,
	})

	logger.GetAppLogger().WithFields(map[string]interface{}{
		"runId":   runID.Hex(),
		"eventId": run.EventID,
		"actor":   actor,
		"step":    run.CurrentStep,
	}).Info("✅ Escalation run đã được acknowledge")

	return updated, nil
}

// Cancel hủy chủ động một run đang chạy. Run đã cancelled thì idempotent,
// run đã resolved hoặc exhausted thì trả về ErrRunTerminal.
func (s *Scheduler) Cancel(ctx context.Context, runID primitive.ObjectID, actor string) (models.EscalationRun, error) {
	run, err := s.runs.FindOneById(ctx, runID)
	if err != nil {
		return models.EscalationRun{}, err
	}
	if run.State == models.RunStateCancelled {
		return run, nil
	}
	if run.IsTerminal() {
		return models.EscalationRun{}, common.ErrRunTerminal
	}

	updated, err := s.runs.MarkCancelled(ctx, runID)
	if errors.Is(err, common.ErrNotFound) {
		return s.runs.FindOneById(ctx, runID)
	}
	if err != nil {
		return models.EscalationRun{}, err
	}

	s.invalidate(runID)
	s.ledger.RecordTransition(ctx, models.RunTransition{
		RunID:     runID,
		EventID:   run.EventID,
		FromState: run.State,
		ToState:   models.RunStateCancelled,
		StepIndex: run.CurrentStep,
		Actor:     actor,
	})

	return updated, nil
}

// Stop hủy mọi timer in-memory, dùng khi shutdown. Trạng thái run đã persist
// nên lần khởi động sau Rehydrate sẽ dựng lại timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.handles {
		h.gen++
		if h.timer != nil {
			h.timer.Stop()
		}
		delete(s.handles, id)
	}
}

// advanceToStep chiếm bước mới của run bằng CAS rồi mới dispatch. Trả về run
// zero-value (không lỗi) khi CAS thất bại vì run đã chuyển trạng thái trước đó;
// caller bỏ qua các transition cũ như vậy.
func (s *Scheduler) advanceToStep(ctx context.Context, run models.EscalationRun, chain models.EscalationChain, event models.NotificationEvent, stepIndex int, fromStates []string) (models.EscalationRun, error) {
	step := chain.Steps[stepIndex]

	// Chiếm bước bằng CAS trước khi gửi bất cứ thứ gì. Deadline = 0 đánh dấu
	// bước đang dispatch dở, Rehydrate dựa vào đó để gửi lại sau crash.
	// Thua CAS nghĩa là run đã chuyển trạng thái (vd ack), không được gửi.
	if _, err := s.runs.ActivateStep(ctx, run.ID, fromStates, stepIndex, 0); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return models.EscalationRun{}, nil
		}
		return models.EscalationRun{}, err
	}

	s.ledger.RecordTransition(ctx, models.RunTransition{
		RunID:     run.ID,
		EventID:   run.EventID,
		FromState: run.State,
		ToState:   models.RunStateActive,
		StepIndex: stepIndex,
	})

	// Gửi cho tất cả channel của bước, chờ settle hết rồi mới tính deadline.
	// Gửi thất bại không chặn escalation, chỉ được ghi vào ledger.
	s.dispatchStep(ctx, run, event, stepIndex, step.ChannelIDs)

	// Chốt deadline bằng CAS trên (state, currentStep): nếu run đã resolved
	// hoặc cancelled trong lúc dispatch thì không đặt timer nữa.
	deadline := time.Now().UnixMilli() + step.TimeoutSeconds*1000
	updated, err := s.runs.SetStepDeadline(ctx, run.ID, stepIndex, deadline)
	if errors.Is(err, common.ErrNotFound) {
		return models.EscalationRun{}, nil
	}
	if err != nil {
		return models.EscalationRun{}, err
	}

	s.armTimer(run.ID, deadline)
	return updated, nil
}

// dispatchStep gửi event qua các channel của một bước với fan-out giới hạn,
// ghi một delivery attempt cho mỗi channel, chờ tất cả hoàn thành
func (s *Scheduler) dispatchStep(ctx context.Context, run models.EscalationRun, event models.NotificationEvent, stepIndex int, channelIDs []primitive.ObjectID) {
	// Đọc lại channel mỗi lần dispatch để thấy thay đổi enable/disable giữa các bước
	channels, err := s.channels.FindByIDs(ctx, channelIDs)
	if err != nil {
		logger.GetErrorLogger().WithFields(map[string]interface{}{
			"runId": run.ID.Hex(),
			"step":  stepIndex,
			"error": err.Error(),
		}).Error("❌ Không đọc được channel của bước escalation")
		return
	}

	sem := make(chan struct{}, s.fanout)
	var wg sync.WaitGroup

	for _, channel := range channels {
		wg.Add(1)
		sem <- struct{}{}
		go func(ch models.DeliveryChannel) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.sender.Send(ctx, ch, event)
			idx := stepIndex
			s.ledger.RecordAttempt(ctx, models.DeliveryAttempt{
				RunID:       run.ID,
				EventID:     event.EventID,
				ChannelID:   ch.ID,
				StepIndex:   &idx,
				Outcome:     outcome.Outcome,
				ErrorDetail: outcome.ErrorDetail,
			})
		}(channel)
	}

	wg.Wait()
}

// onTimeout xử lý khi timer của một bước nổ: leo thang sang bước kế tiếp
// hoặc chuyển run sang exhausted nếu đã là bước cuối
func (s *Scheduler) onTimeout(runID primitive.ObjectID, gen uint64) {
	if s.staleGen(runID, gen) {
		return
	}

	ctx := context.Background()
	log := logger.GetAppLogger().WithField("runId", runID.Hex())

	run, err := s.runs.FindOneById(ctx, runID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.WithField("error", err.Error()).Error("❌ Không đọc được run khi timer nổ")
		}
		return
	}
	if run.State != models.RunStateActive {
		return
	}

	chain, err := s.chains.GetValidated(ctx, run.ChainID)
	if err != nil {
		log.WithField("error", err.Error()).Error("❌ Không đọc được chain khi leo thang, sẽ thử lại")
		s.retryLater(runID)
		return
	}

	nextStep := run.CurrentStep + 1
	if nextStep >= len(chain.Steps) {
		log.WithFields(map[string]interface{}{
			"eventId": run.EventID,
			"step":    run.CurrentStep,
		}).Warn("⚠️ Hết bước cuối mà không có acknowledgement, run exhausted")
		s.exhaust(ctx, run)
		return
	}

	event, err := s.events.FindByEventID(ctx, run.EventID)
	if err != nil {
		log.WithField("error", err.Error()).Error("❌ Không đọc được event khi leo thang, sẽ thử lại")
		s.retryLater(runID)
		return
	}

	log.WithFields(map[string]interface{}{
		"eventId":  run.EventID,
		"fromStep": run.CurrentStep,
		"toStep":   nextStep,
	}).Info("⤴️ Leo thang sang bước kế tiếp")

	if _, err := s.advanceToStep(ctx, run, chain, event, nextStep, []string{models.RunStateActive}); err != nil {
		log.WithField("error", err.Error()).Error("❌ Leo thang thất bại, sẽ thử lại")
		s.retryLater(runID)
	}
}

// retryLater đặt lại timer sau một khoảng ngắn khi leo thang gặp lỗi tạm thời.
// Chỉ lỗi hạ tầng mới đi qua đây; hết bước vẫn chuyển exhausted như thường.
func (s *Scheduler) retryLater(runID primitive.ObjectID) {
	s.armTimer(runID, time.Now().Add(s.retryDelay).UnixMilli())
}

// exhaust chuyển run sang exhausted với CAS, bỏ qua nếu run đã chuyển trạng thái
func (s *Scheduler) exhaust(ctx context.Context, run models.EscalationRun) {
	if _, err := s.runs.MarkExhausted(ctx, run.ID); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			logger.GetErrorLogger().WithFields(map[string]interface{}{
				"runId": run.ID.Hex(),
				"error": err.Error(),
			}).Error("❌ Không chuyển được run sang exhausted")
		}
		return
	}

	s.invalidate(run.ID)
	s.ledger.RecordTransition(ctx, models.RunTransition{
		RunID:     run.ID,
		EventID:   run.EventID,
		FromState: run.State,
		ToState:   models.RunStateExhausted,
		StepIndex: run.CurrentStep,
	})
}

// armTimer đặt timer cho một run đến hạn deadline (unix ms). Generation counter
// được tăng để vô hiệu hóa timer cũ; deadline đã qua làm timer nổ ngay lập tức.
func (s *Scheduler) armTimer(runID primitive.ObjectID, deadline int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[runID]
	if !ok {
		h = &runHandle{}
		s.handles[runID] = h
	}

	h.gen++
	gen := h.gen
	if h.timer != nil {
		h.timer.Stop()
	}

	d := time.Until(time.UnixMilli(deadline))
	if d < 0 {
		d = 0
	}
	h.timer = time.AfterFunc(d, func() {
		s.onTimeout(runID, gen)
	})
}

// invalidate hủy timer của run và loại handle khỏi map, dùng khi run kết thúc
func (s *Scheduler) invalidate(runID primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[runID]; ok {
		h.gen++
		if h.timer != nil {
			h.timer.Stop()
		}
		delete(s.handles, runID)
	}
}

// staleGen kiểm tra generation của timer còn hợp lệ không
func (s *Scheduler) staleGen(runID primitive.ObjectID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[runID]
	return !ok || h.gen != gen
}
