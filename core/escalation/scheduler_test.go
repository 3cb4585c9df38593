// Package escalation - Test scheduler với các fake store in-memory: vòng đời run,
// leo thang theo timeout, idempotent ack, rehydrate từ deadline đã persist.
package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "alert_center/core/api/models/mongodb"
	"alert_center/core/common"
	"alert_center/core/delivery"
)

// ---- Các fake store in-memory, giữ đúng CAS semantics của service layer ----

type fakeRunStore struct {
	mu   sync.Mutex
	runs map[primitive.ObjectID]models.EscalationRun
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: map[primitive.ObjectID]models.EscalationRun{}}
}

func (f *fakeRunStore) FindOneById(ctx context.Context, id primitive.ObjectID) (models.EscalationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return models.EscalationRun{}, common.ErrNotFound
	}
	return run, nil
}

func (f *fakeRunStore) FindNonTerminalByEventID(ctx context.Context, eventID string) (models.EscalationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.runs {
		if run.EventID == eventID && !run.IsTerminal() {
			return run, nil
		}
	}
	return models.EscalationRun{}, common.ErrNotFound
}

func (f *fakeRunStore) FindNonTerminal(ctx context.Context) ([]models.EscalationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.EscalationRun
	for _, run := range f.runs {
		if !run.IsTerminal() {
			result = append(result, run)
		}
	}
	return result, nil
}

func (f *fakeRunStore) CreateRun(ctx context.Context, eventID string, chainID primitive.ObjectID) (models.EscalationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := models.EscalationRun{
		ID:          primitive.NewObjectID(),
		EventID:     eventID,
		ChainID:     chainID,
		CurrentStep: 0,
		State:       models.RunStatePending,
	}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRunStore) casUpdate(id primitive.ObjectID, fromStates []string, apply func(*models.EscalationRun)) (models.EscalationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return models.EscalationRun{}, common.ErrNotFound
	}
	matched := false
	for _, state := range fromStates {
		if run.State == state {
			matched = true
			break
		}
	}
	if !matched {
		return models.EscalationRun{}, common.ErrNotFound
	}
	apply(&run)
	f.runs[id] = run
	return run, nil
}

func (f *fakeRunStore) ActivateStep(ctx context.Context, runID primitive.ObjectID, fromStates []string, stepIndex int, deadline int64) (models.EscalationRun, error) {
	return f.casUpdate(runID, fromStates, func(r *models.EscalationRun) {
		r.State = models.RunStateActive
		r.CurrentStep = stepIndex
		r.Deadline = deadline
	})
}

func (f *fakeRunStore) SetStepDeadline(ctx context.Context, runID primitive.ObjectID, stepIndex int, deadline int64) (models.EscalationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok || run.State != models.RunStateActive || run.CurrentStep != stepIndex {
		return models.EscalationRun{}, common.ErrNotFound
	}
	run.Deadline = deadline
	f.runs[runID] = run
	return run, nil
}

func (f *fakeRunStore) MarkResolved(ctx context.Context, runID primitive.ObjectID, actor string) (models.EscalationRun, error) {
	return f.casUpdate(runID, models.NonTerminalRunStates, func(r *models.EscalationRun) {
		r.State = models.RunStateResolved
		r.Deadline = 0
		r.Resolution = &models.RunResolution{AckedBy: actor, AckedAt: time.Now().UnixMilli()}
	})
}

func (f *fakeRunStore) MarkExhausted(ctx context.Context, runID primitive.ObjectID) (models.EscalationRun, error) {
	return f.casUpdate(runID, []string{models.RunStateActive}, func(r *models.EscalationRun) {
		r.State = models.RunStateExhausted
		r.Deadline = 0
	})
}

func (f *fakeRunStore) MarkCancelled(ctx context.Context, runID primitive.ObjectID) (models.EscalationRun, error) {
	return f.casUpdate(runID, models.NonTerminalRunStates, func(r *models.EscalationRun) {
		r.State = models.RunStateCancelled
		r.Deadline = 0
	})
}

func (f *fakeRunStore) put(run models.EscalationRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = run
}

func (f *fakeRunStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type fakeChainStore struct {
	mu       sync.Mutex
	chains   map[primitive.ObjectID]models.EscalationChain
	failures int
}

// failNext làm n lần GetValidated kế tiếp trả về lỗi hạ tầng
func (f *fakeChainStore) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *fakeChainStore) GetValidated(ctx context.Context, id primitive.ObjectID) (models.EscalationChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return models.EscalationChain{}, errors.New("mongo tạm thời không phản hồi")
	}
	chain, ok := f.chains[id]
	if !ok {
		return models.EscalationChain{}, common.ErrNotFound
	}
	return chain, nil
}

type fakeChannelStore struct {
	channels map[primitive.ObjectID]models.DeliveryChannel
}

func (f *fakeChannelStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.DeliveryChannel, error) {
	var result []models.DeliveryChannel
	for _, id := range ids {
		if ch, ok := f.channels[id]; ok {
			result = append(result, ch)
		}
	}
	return result, nil
}

type fakeEventStore struct {
	mu       sync.Mutex
	events   map[string]models.NotificationEvent
	failures int
}

func (f *fakeEventStore) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *fakeEventStore) FindByEventID(ctx context.Context, eventID string) (models.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return models.NotificationEvent{}, errors.New("mongo tạm thời không phản hồi")
	}
	event, ok := f.events[eventID]
	if !ok {
		return models.NotificationEvent{}, common.ErrNotFound
	}
	return event, nil
}

type sendCall struct {
	ChannelID primitive.ObjectID
	EventID   string
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sendCall
}

func (f *fakeSender) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) delivery.SendOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{ChannelID: channel.ID, EventID: event.EventID})
	if !channel.Enabled {
		return delivery.SendOutcome{Outcome: models.OutcomeSkippedDisabled}
	}
	return delivery.SendOutcome{Outcome: models.OutcomeSent}
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts []models.DeliveryAttempt
}

func (f *fakeAttemptStore) InsertOne(ctx context.Context, data models.DeliveryAttempt) (models.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data.ID = primitive.NewObjectID()
	f.attempts = append(f.attempts, data)
	return data, nil
}

func (f *fakeAttemptStore) all() []models.DeliveryAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DeliveryAttempt{}, f.attempts...)
}

type fakeTransitionStore struct {
	mu          sync.Mutex
	transitions []models.RunTransition
}

func (f *fakeTransitionStore) InsertOne(ctx context.Context, data models.RunTransition) (models.RunTransition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data.ID = primitive.NewObjectID()
	f.transitions = append(f.transitions, data)
	return data, nil
}

func (f *fakeTransitionStore) states() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []string
	for _, tr := range f.transitions {
		result = append(result, tr.ToState)
	}
	return result
}

// testHarness gom các fake lại cho một scheduler test
type testHarness struct {
	runs        *fakeRunStore
	chains      *fakeChainStore
	channels    *fakeChannelStore
	events      *fakeEventStore
	sender      *fakeSender
	attempts    *fakeAttemptStore
	transitions *fakeTransitionStore
	scheduler   *Scheduler
}

// newHarness dựng scheduler với một chain và danh sách channel cho từng bước.
// stepTimeouts là timeout (giây) của từng bước, mỗi bước dùng một channel riêng.
func newHarness(stepTimeouts []int64) (*testHarness, models.NotificationEvent, primitive.ObjectID) {
	h := &testHarness{
		runs:        newFakeRunStore(),
		chains:      &fakeChainStore{chains: map[primitive.ObjectID]models.EscalationChain{}},
		channels:    &fakeChannelStore{channels: map[primitive.ObjectID]models.DeliveryChannel{}},
		events:      &fakeEventStore{events: map[string]models.NotificationEvent{}},
		sender:      &fakeSender{},
		attempts:    &fakeAttemptStore{},
		transitions: &fakeTransitionStore{},
	}

	var steps []models.EscalationStep
	for _, timeout := range stepTimeouts {
		channelID := primitive.NewObjectID()
		h.channels.channels[channelID] = models.DeliveryChannel{
			ID:      channelID,
			Kind:    models.ChannelKindEmail,
			Enabled: true,
		}
		steps = append(steps, models.EscalationStep{
			ChannelIDs:     []primitive.ObjectID{channelID},
			TimeoutSeconds: timeout,
		})
	}

	chainID := primitive.NewObjectID()
	h.chains.chains[chainID] = models.EscalationChain{ID: chainID, Steps: steps}

	event := models.NotificationEvent{
		ID:       primitive.NewObjectID(),
		EventID:  "evt-1",
		Type:     "disk_full",
		Severity: models.SeverityCritical,
	}
	h.events.events[event.EventID] = event

	ledger := NewLedger(h.attempts, h.transitions, 3)
	h.scheduler = NewScheduler(h.runs, h.chains, h.channels, h.events, h.sender, ledger, 4)

	return h, event, chainID
}

func TestStart_DispatchBuocDauVaActive(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	run, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start trả về lỗi: %v", err)
	}

	if run.State != models.RunStateActive {
		t.Errorf("Sau Start run phải ở trạng thái active, nhận được %s", run.State)
	}
	if run.CurrentStep != 0 {
		t.Errorf("Run phải ở bước 0, nhận được %d", run.CurrentStep)
	}
	if run.Deadline <= time.Now().UnixMilli() {
		t.Error("Deadline phải nằm trong tương lai")
	}
	if h.sender.callCount() != 1 {
		t.Errorf("Bước 0 có 1 channel thì phải có đúng 1 lần gửi, nhận được %d", h.sender.callCount())
	}

	attempts := h.attempts.all()
	if len(attempts) != 1 {
		t.Fatalf("Phải có 1 delivery attempt, nhận được %d", len(attempts))
	}
	if attempts[0].StepIndex == nil || *attempts[0].StepIndex != 0 {
		t.Error("Attempt của escalation phải có StepIndex = 0")
	}
	if attempts[0].RunID != run.ID {
		t.Error("Attempt phải gắn với run")
	}
}

func TestStart_IdempotentTheoEventID(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	first, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start lần 1 trả về lỗi: %v", err)
	}
	second, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start lần 2 trả về lỗi: %v", err)
	}

	if first.ID != second.ID {
		t.Error("Start lần 2 cho cùng event phải trả về run cũ")
	}
	if h.runs.count() != 1 {
		t.Errorf("Chỉ được có 1 run, nhận được %d", h.runs.count())
	}
	if h.sender.callCount() != 1 {
		t.Errorf("Start lần 2 không được gửi lại, tổng số lần gửi %d", h.sender.callCount())
	}
}

func TestStart_ChainKhongTonTai(t *testing.T) {
	h, event, _ := newHarness([]int64{60})
	defer h.scheduler.Stop()

	_, err := h.scheduler.Start(context.Background(), event, primitive.NewObjectID())
	if err == nil {
		t.Fatal("Start với chain không tồn tại phải trả về lỗi")
	}
	if h.runs.count() != 0 {
		t.Error("Không được tạo run khi chain không tồn tại")
	}
}

func TestTimeout_LeoThangRoiExhausted(t *testing.T) {
	h, event, chainID := newHarness([]int64{1, 1})
	defer h.scheduler.Stop()

	run, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start trả về lỗi: %v", err)
	}

	// Chờ timer bước 0 nổ và bước 1 được dispatch
	time.Sleep(1500 * time.Millisecond)

	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateActive || current.CurrentStep != 1 {
		t.Fatalf("Sau timeout bước 0 run phải active ở bước 1, nhận được state=%s step=%d", current.State, current.CurrentStep)
	}
	if h.sender.callCount() != 2 {
		t.Errorf("Phải có 2 lần gửi (mỗi bước 1 channel), nhận được %d", h.sender.callCount())
	}

	// Chờ timer bước cuối nổ, không còn bước nào nữa
	time.Sleep(1500 * time.Millisecond)

	current, _ = h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateExhausted {
		t.Errorf("Hết bước cuối mà không có ack thì run phải exhausted, nhận được %s", current.State)
	}
	if current.Deadline != 0 {
		t.Error("Run terminal phải có deadline = 0")
	}

	states := h.transitions.states()
	want := []string{models.RunStatePending, models.RunStateActive, models.RunStateActive, models.RunStateExhausted}
	if len(states) != len(want) {
		t.Fatalf("Phải có %d transition, nhận được %v", len(want), states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Transition %d phải là %s, nhận được %s", i, want[i], states[i])
		}
	}
}

func TestAcknowledge_DungLeoThang(t *testing.T) {
	h, event, chainID := newHarness([]int64{1, 60})
	defer h.scheduler.Stop()

	run, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start trả về lỗi: %v", err)
	}

	resolved, err := h.scheduler.Acknowledge(context.Background(), run.ID, "oncall@example.com")
	if err != nil {
		t.Fatalf("Acknowledge trả về lỗi: %v", err)
	}
	if resolved.State != models.RunStateResolved {
		t.Errorf("Sau ack run phải resolved, nhận được %s", resolved.State)
	}
	if resolved.Resolution == nil || resolved.Resolution.AckedBy != "oncall@example.com" {
		t.Error("Resolution phải ghi lại actor đã ack")
	}

	// Chờ quá timeout bước 0: timer đã bị hủy, không được leo thang sang bước 1
	time.Sleep(1500 * time.Millisecond)

	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateResolved {
		t.Errorf("Run đã resolved không được chuyển trạng thái nữa, nhận được %s", current.State)
	}
	if h.sender.callCount() != 1 {
		t.Errorf("Sau ack không được gửi bước kế tiếp, tổng số lần gửi %d", h.sender.callCount())
	}
}

func TestAcknowledge_Idempotent(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	run, _ := h.scheduler.Start(context.Background(), event, chainID)

	first, err := h.scheduler.Acknowledge(context.Background(), run.ID, "alice")
	if err != nil {
		t.Fatalf("Acknowledge lần 1 trả về lỗi: %v", err)
	}
	second, err := h.scheduler.Acknowledge(context.Background(), run.ID, "bob")
	if err != nil {
		t.Fatalf("Acknowledge lần 2 phải idempotent, trả về lỗi: %v", err)
	}

	if second.State != models.RunStateResolved {
		t.Errorf("Ack lần 2 phải trả về trạng thái resolved, nhận được %s", second.State)
	}
	if second.Resolution.AckedBy != first.Resolution.AckedBy {
		t.Error("Ack lần 2 không được ghi đè actor của lần ack đầu")
	}
}

func TestAcknowledge_RunKhongTonTai(t *testing.T) {
	h, _, _ := newHarness([]int64{60})
	defer h.scheduler.Stop()

	_, err := h.scheduler.Acknowledge(context.Background(), primitive.NewObjectID(), "alice")
	if err == nil {
		t.Fatal("Ack run không tồn tại phải trả về lỗi")
	}
}

func TestCancel_VaCacTrangThaiTerminal(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	run, _ := h.scheduler.Start(context.Background(), event, chainID)

	cancelled, err := h.scheduler.Cancel(context.Background(), run.ID, "admin")
	if err != nil {
		t.Fatalf("Cancel trả về lỗi: %v", err)
	}
	if cancelled.State != models.RunStateCancelled {
		t.Errorf("Sau cancel run phải cancelled, nhận được %s", cancelled.State)
	}

	// Cancel lần 2 idempotent
	again, err := h.scheduler.Cancel(context.Background(), run.ID, "admin")
	if err != nil {
		t.Fatalf("Cancel lần 2 phải idempotent, trả về lỗi: %v", err)
	}
	if again.State != models.RunStateCancelled {
		t.Errorf("Cancel lần 2 phải trả về cancelled, nhận được %s", again.State)
	}

	// Ack run đã cancelled trả về trạng thái hiện tại, không lỗi
	acked, err := h.scheduler.Acknowledge(context.Background(), run.ID, "alice")
	if err != nil {
		t.Fatalf("Ack run đã cancelled phải idempotent, trả về lỗi: %v", err)
	}
	if acked.State != models.RunStateCancelled {
		t.Error("Ack run đã cancelled không được đổi trạng thái")
	}
}

func TestCancel_RunDaResolvedBiTuChoi(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	run, _ := h.scheduler.Start(context.Background(), event, chainID)
	h.scheduler.Acknowledge(context.Background(), run.ID, "alice")

	_, err := h.scheduler.Cancel(context.Background(), run.ID, "admin")
	if err != common.ErrRunTerminal {
		t.Errorf("Cancel run đã resolved phải trả về ErrRunTerminal, nhận được %v", err)
	}
}

func TestRehydrate_DeadlineDaQuaNoNgay(t *testing.T) {
	h, event, chainID := newHarness([]int64{1})
	defer h.scheduler.Stop()

	// Run active với deadline đã qua trong lúc downtime
	run := models.EscalationRun{
		ID:          primitive.NewObjectID(),
		EventID:     event.EventID,
		ChainID:     chainID,
		CurrentStep: 0,
		State:       models.RunStateActive,
		Deadline:    time.Now().UnixMilli() - 5000,
	}
	h.runs.put(run)

	if err := h.scheduler.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate trả về lỗi: %v", err)
	}

	// Timer nổ ngay, chain chỉ có 1 bước nên run exhausted
	time.Sleep(300 * time.Millisecond)

	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateExhausted {
		t.Errorf("Deadline đã qua phải làm run leo thang ngay khi rehydrate, nhận được %s", current.State)
	}
}

func TestRehydrate_DeadlineTuongLaiKhongGiaHan(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	deadline := time.Now().UnixMilli() + 1000
	run := models.EscalationRun{
		ID:          primitive.NewObjectID(),
		EventID:     event.EventID,
		ChainID:     chainID,
		CurrentStep: 0,
		State:       models.RunStateActive,
		Deadline:    deadline,
	}
	h.runs.put(run)

	if err := h.scheduler.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate trả về lỗi: %v", err)
	}

	// Trước deadline run vẫn active
	time.Sleep(300 * time.Millisecond)
	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateActive {
		t.Fatalf("Trước deadline run phải còn active, nhận được %s", current.State)
	}
	if current.Deadline != deadline {
		t.Error("Rehydrate không được thay đổi deadline đã persist")
	}

	// Sau deadline cũ (không phải deadline mới tính lại) run phải exhausted
	time.Sleep(1200 * time.Millisecond)
	current, _ = h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateExhausted {
		t.Errorf("Timer phải nổ theo deadline cũ, nhận được state %s", current.State)
	}
}

func TestRehydrate_RunPendingDuocDispatchLai(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	// Restart xảy ra giữa lúc tạo run và dispatch bước 0
	run := models.EscalationRun{
		ID:          primitive.NewObjectID(),
		EventID:     event.EventID,
		ChainID:     chainID,
		CurrentStep: 0,
		State:       models.RunStatePending,
	}
	h.runs.put(run)

	if err := h.scheduler.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate trả về lỗi: %v", err)
	}

	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateActive {
		t.Errorf("Run pending phải được dispatch lại thành active, nhận được %s", current.State)
	}
	if h.sender.callCount() != 1 {
		t.Errorf("Bước 0 phải được gửi đúng 1 lần, nhận được %d", h.sender.callCount())
	}
}

// blockingSender chặn một cuộc gửi cụ thể (đếm từ 1) cho đến khi test mở khóa,
// mô phỏng transport chậm để ack kịp chen vào giữa lúc dispatch
type blockingSender struct {
	inner   *fakeSender
	blockAt int
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingSender) Send(ctx context.Context, channel models.DeliveryChannel, event models.NotificationEvent) delivery.SendOutcome {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	if n == b.blockAt {
		b.entered <- struct{}{}
		<-b.release
	}
	return b.inner.Send(ctx, channel, event)
}

func TestAcknowledge_GiuaLucDispatchGiuNguyenBuocCuoi(t *testing.T) {
	h, event, chainID := newHarness([]int64{1, 60})
	blocking := &blockingSender{
		inner:   h.sender,
		blockAt: 2, // cuộc gửi đầu tiên của bước 1
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h.scheduler = NewScheduler(h.runs, h.chains, h.channels, h.events, blocking, NewLedger(h.attempts, h.transitions, 3), 4)
	defer h.scheduler.Stop()

	run, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start trả về lỗi: %v", err)
	}

	// Chờ timer bước 0 nổ và cuộc gửi của bước 1 đang treo giữa chừng
	select {
	case <-blocking.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("Cuộc gửi của bước 1 không bắt đầu sau timeout bước 0")
	}

	// Ack đến đúng lúc bước 1 đang dispatch dở
	if _, err := h.scheduler.Acknowledge(context.Background(), run.ID, "oncall@example.com"); err != nil {
		t.Fatalf("Acknowledge trả về lỗi: %v", err)
	}

	close(blocking.release)
	time.Sleep(300 * time.Millisecond)

	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateResolved {
		t.Fatalf("Run phải resolved sau ack, nhận được %s", current.State)
	}

	// Bước cuối của run không được nhỏ hơn bước của bất kỳ attempt nào:
	// bước phải được chiếm qua CAS trước khi gửi
	for _, attempt := range h.attempts.all() {
		if attempt.StepIndex != nil && *attempt.StepIndex > current.CurrentStep {
			t.Errorf("Attempt ghi ở bước %d trong khi run kết thúc ở bước %d", *attempt.StepIndex, current.CurrentStep)
		}
	}

	// Deadline của bước dở dang không được chốt lại sau khi run đã resolved
	if current.Deadline != 0 {
		t.Errorf("Run resolved không được giữ deadline, nhận được %d", current.Deadline)
	}

	// Không được leo thang hay exhausted thêm sau ack
	for _, state := range h.transitions.states() {
		if state == models.RunStateExhausted {
			t.Error("Run đã ack không được chuyển sang exhausted")
		}
	}
	if blocking.inner.callCount() != 2 {
		t.Errorf("Không được gửi thêm sau ack, tổng số lần gửi %d", blocking.inner.callCount())
	}
}

func TestAcknowledge_TruocKhiChiemBuocThiKhongGuiGi(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	run, _ := h.scheduler.Start(context.Background(), event, chainID)
	h.scheduler.Acknowledge(context.Background(), run.ID, "oncall@example.com")

	// Run đã resolved thì chiếm bước thua CAS, không được gửi gì cả
	chain, _ := h.chains.GetValidated(context.Background(), chainID)
	updated, err := h.scheduler.advanceToStep(context.Background(), run, chain, event, 0, []string{models.RunStateActive})
	if err != nil {
		t.Fatalf("Thua CAS phải trả về nil error, nhận được %v", err)
	}
	if !updated.ID.IsZero() {
		t.Error("Thua CAS phải trả về run zero-value")
	}
	if h.sender.callCount() != 1 {
		t.Errorf("Run resolved không được dispatch thêm, tổng số lần gửi %d", h.sender.callCount())
	}
}

func TestTimeout_ChainDocLoiTamThoiThiThuLai(t *testing.T) {
	h, event, chainID := newHarness([]int64{1, 60})
	h.scheduler.retryDelay = 50 * time.Millisecond
	defer h.scheduler.Stop()

	run, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start trả về lỗi: %v", err)
	}

	// Hai lần đọc chain đầu tiên khi leo thang sẽ thất bại
	h.chains.failNext(2)

	time.Sleep(1800 * time.Millisecond)

	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateActive || current.CurrentStep != 1 {
		t.Fatalf("Lỗi đọc tạm thời phải được thử lại rồi leo thang, nhận được state=%s step=%d", current.State, current.CurrentStep)
	}
	for _, state := range h.transitions.states() {
		if state == models.RunStateExhausted {
			t.Error("Lỗi đọc tạm thời không được làm run exhausted")
		}
	}
}

func TestTimeout_EventDocLoiTamThoiThiThuLai(t *testing.T) {
	h, event, chainID := newHarness([]int64{1, 60})
	h.scheduler.retryDelay = 50 * time.Millisecond
	defer h.scheduler.Stop()

	run, err := h.scheduler.Start(context.Background(), event, chainID)
	if err != nil {
		t.Fatalf("Start trả về lỗi: %v", err)
	}

	h.events.failNext(2)

	time.Sleep(1800 * time.Millisecond)

	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.State != models.RunStateActive || current.CurrentStep != 1 {
		t.Fatalf("Lỗi đọc tạm thời phải được thử lại rồi leo thang, nhận được state=%s step=%d", current.State, current.CurrentStep)
	}
}

func TestRehydrate_BuocDispatchDoDuocGuiLai(t *testing.T) {
	h, event, chainID := newHarness([]int64{60})
	defer h.scheduler.Stop()

	// Crash xảy ra sau khi chiếm bước 0 nhưng trước khi gửi xong: deadline = 0
	run := models.EscalationRun{
		ID:          primitive.NewObjectID(),
		EventID:     event.EventID,
		ChainID:     chainID,
		CurrentStep: 0,
		State:       models.RunStateActive,
		Deadline:    0,
	}
	h.runs.put(run)

	if err := h.scheduler.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate trả về lỗi: %v", err)
	}

	if h.sender.callCount() != 1 {
		t.Errorf("Bước dở dang phải được gửi lại đúng 1 lần, nhận được %d", h.sender.callCount())
	}
	current, _ := h.runs.FindOneById(context.Background(), run.ID)
	if current.Deadline <= time.Now().UnixMilli() {
		t.Error("Deadline phải được chốt lại sau khi gửi xong bước dở dang")
	}
}
