// Package escalation - Test dispatcher: idempotent submit, NoMatch, direct send, chain target.
package escalation

import (
	"context"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "alert_center/core/api/models/mongodb"
)

type fakeEventWriter struct {
	mu     sync.Mutex
	events map[string]models.NotificationEvent
}

func newFakeEventWriter() *fakeEventWriter {
	return &fakeEventWriter{events: map[string]models.NotificationEvent{}}
}

func (f *fakeEventWriter) InsertIfAbsent(ctx context.Context, event models.NotificationEvent) (models.NotificationEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.events[event.EventID]; ok {
		return existing, true, nil
	}
	event.ID = primitive.NewObjectID()
	f.events[event.EventID] = event
	return event, false, nil
}

type fakeRuleStore struct {
	rules []models.DeliveryRule
}

func (f *fakeRuleStore) FindEnabledSorted(ctx context.Context) ([]models.DeliveryRule, error) {
	return f.rules, nil
}

type fakeStarter struct {
	mu    sync.Mutex
	calls int
	run   models.EscalationRun
}

func (f *fakeStarter) Start(ctx context.Context, event models.NotificationEvent, chainID primitive.ObjectID) (models.EscalationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.run = models.EscalationRun{
		ID:          primitive.NewObjectID(),
		EventID:     event.EventID,
		ChainID:     chainID,
		State:       models.RunStateActive,
		CurrentStep: 0,
	}
	return f.run, nil
}

type dispatcherHarness struct {
	events     *fakeEventWriter
	rules      *fakeRuleStore
	channels   *fakeChannelStore
	runs       *fakeRunStore
	sender     *fakeSender
	attempts   *fakeAttemptStore
	starter    *fakeStarter
	dispatcher *Dispatcher
}

func newDispatcherHarness(rules []models.DeliveryRule, channels map[primitive.ObjectID]models.DeliveryChannel) *dispatcherHarness {
	h := &dispatcherHarness{
		events:   newFakeEventWriter(),
		rules:    &fakeRuleStore{rules: rules},
		channels: &fakeChannelStore{channels: channels},
		runs:     newFakeRunStore(),
		sender:   &fakeSender{},
		attempts: &fakeAttemptStore{},
		starter:  &fakeStarter{},
	}
	ledger := NewLedger(h.attempts, &fakeTransitionStore{}, 3)
	h.dispatcher = NewDispatcher(h.events, h.rules, h.channels, h.runs, h.sender, ledger, h.starter, 4)
	return h
}

func testEvent(eventID string) models.NotificationEvent {
	return models.NotificationEvent{
		EventID:  eventID,
		Type:     "disk_full",
		Severity: models.SeverityCritical,
	}
}

func TestSubmit_KhongRuleNaoKhop(t *testing.T) {
	h := newDispatcherHarness(nil, nil)

	result, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("Submit trả về lỗi: %v", err)
	}

	if result.Matched {
		t.Error("Không có rule thì Matched phải là false")
	}
	if result.Event.ID.IsZero() {
		t.Error("Event phải được persist kể cả khi NoMatch")
	}
	if h.sender.callCount() != 0 {
		t.Error("NoMatch không được gửi gì")
	}
}

func TestSubmit_DirectSend(t *testing.T) {
	channelID := primitive.NewObjectID()
	channels := map[primitive.ObjectID]models.DeliveryChannel{
		channelID: {ID: channelID, Kind: models.ChannelKindEmail, Enabled: true},
	}
	rules := []models.DeliveryRule{{
		ID:        primitive.NewObjectID(),
		Priority:  1,
		Enabled:   true,
		Condition: models.RuleCondition{EventType: "disk_full"},
		Target:    models.RuleTarget{ChannelIDs: []primitive.ObjectID{channelID}},
	}}
	h := newDispatcherHarness(rules, channels)

	result, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("Submit trả về lỗi: %v", err)
	}

	if !result.Matched {
		t.Fatal("Event khớp rule thì Matched phải là true")
	}
	if result.RuleID != rules[0].ID {
		t.Error("RuleID phải là rule đã khớp")
	}
	if result.Run != nil {
		t.Error("Direct send không được tạo run")
	}
	if len(result.Attempts) != 1 {
		t.Fatalf("Phải có 1 attempt, nhận được %d", len(result.Attempts))
	}
	if result.Attempts[0].Outcome != models.OutcomeSent {
		t.Errorf("Attempt phải có outcome sent, nhận được %s", result.Attempts[0].Outcome)
	}
	if result.Attempts[0].StepIndex != nil {
		t.Error("Attempt của direct send phải có StepIndex nil")
	}
	if !result.Attempts[0].RunID.IsZero() {
		t.Error("Attempt của direct send phải có RunID Nil")
	}
	if h.starter.calls != 0 {
		t.Error("Direct send không được gọi scheduler")
	}
}

func TestSubmit_ChainTarget(t *testing.T) {
	chainID := primitive.NewObjectID()
	rules := []models.DeliveryRule{{
		ID:        primitive.NewObjectID(),
		Priority:  1,
		Enabled:   true,
		Condition: models.RuleCondition{Severities: []string{models.SeverityCritical}},
		Target:    models.RuleTarget{ChainID: &chainID},
	}}
	h := newDispatcherHarness(rules, nil)

	result, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("Submit trả về lỗi: %v", err)
	}

	if h.starter.calls != 1 {
		t.Fatalf("Target là chain thì scheduler phải được gọi 1 lần, nhận được %d", h.starter.calls)
	}
	if result.Run == nil {
		t.Fatal("Kết quả phải chứa run đã tạo")
	}
	if result.Run.ChainID != chainID {
		t.Error("Run phải gắn với chain của rule")
	}
	if len(result.Attempts) != 0 {
		t.Error("Target là chain thì dispatcher không gửi trực tiếp")
	}
}

func TestSubmit_DuplicateKhongGuiLai(t *testing.T) {
	channelID := primitive.NewObjectID()
	channels := map[primitive.ObjectID]models.DeliveryChannel{
		channelID: {ID: channelID, Kind: models.ChannelKindEmail, Enabled: true},
	}
	rules := []models.DeliveryRule{{
		ID:        primitive.NewObjectID(),
		Priority:  1,
		Enabled:   true,
		Target:    models.RuleTarget{ChannelIDs: []primitive.ObjectID{channelID}},
	}}
	h := newDispatcherHarness(rules, channels)

	first, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("Submit lần 1 trả về lỗi: %v", err)
	}
	second, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("Submit lần 2 trả về lỗi: %v", err)
	}

	if second.Duplicate != true {
		t.Error("Submit lần 2 cùng event id phải trả về Duplicate = true")
	}
	if first.Event.ID != second.Event.ID {
		t.Error("Submit lần 2 phải trả về event đã persist lần đầu")
	}
	if h.sender.callCount() != 1 {
		t.Errorf("Submit duplicate không được gửi lại, tổng số lần gửi %d", h.sender.callCount())
	}
}

func TestSubmit_DuplicateTraVeRunDangChay(t *testing.T) {
	chainID := primitive.NewObjectID()
	h := newDispatcherHarness(nil, nil)

	// Submit lần đầu để persist event
	if _, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1")); err != nil {
		t.Fatalf("Submit lần 1 trả về lỗi: %v", err)
	}

	// Run đang chạy cho event này
	run, _ := h.runs.CreateRun(context.Background(), "evt-1", chainID)

	result, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("Submit lần 2 trả về lỗi: %v", err)
	}

	if !result.Duplicate {
		t.Fatal("Submit lần 2 phải là duplicate")
	}
	if result.Run == nil || result.Run.ID != run.ID {
		t.Error("Kết quả duplicate phải kèm run chưa kết thúc của event")
	}
}

func TestSubmit_ChannelDisabledDuocGhiSkipped(t *testing.T) {
	channelID := primitive.NewObjectID()
	channels := map[primitive.ObjectID]models.DeliveryChannel{
		channelID: {ID: channelID, Kind: models.ChannelKindEmail, Enabled: false},
	}
	rules := []models.DeliveryRule{{
		ID:      primitive.NewObjectID(),
		Enabled: true,
		Target:  models.RuleTarget{ChannelIDs: []primitive.ObjectID{channelID}},
	}}
	h := newDispatcherHarness(rules, channels)

	result, err := h.dispatcher.Submit(context.Background(), testEvent("evt-1"))
	if err != nil {
		t.Fatalf("Submit trả về lỗi: %v", err)
	}

	if len(result.Attempts) != 1 {
		t.Fatalf("Channel disabled vẫn phải có attempt, nhận được %d", len(result.Attempts))
	}
	if result.Attempts[0].Outcome != models.OutcomeSkippedDisabled {
		t.Errorf("Attempt phải có outcome skipped_disabled, nhận được %s", result.Attempts[0].Outcome)
	}
}

// Đảm bảo *Scheduler thỏa mãn interface mà Dispatcher cần
var _ runStarter = (*Scheduler)(nil)
