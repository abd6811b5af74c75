package dlq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/notify"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/provider"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
)

type fakeWorkflowStore struct {
	workflows    map[uuid.UUID]*model.Workflow
	activeDeltas map[uuid.UUID]int
	failedCounts map[uuid.UUID]int
}

func (s *fakeWorkflowStore) GetByID(_ context.Context, id uuid.UUID) (*model.Workflow, error) {
	workflow, ok := s.workflows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return workflow, nil
}

func (s *fakeWorkflowStore) IncrementActiveCount(_ context.Context, id uuid.UUID, delta int) error {
	s.activeDeltas[id] += delta
	return nil
}

func (s *fakeWorkflowStore) IncrementFailedCount(_ context.Context, id uuid.UUID) error {
	s.failedCounts[id]++
	return nil
}

type fakeExecutionStore struct {
	executions map[uuid.UUID]*model.WorkflowExecution
	details    map[uuid.UUID]model.JSONB
}

func (s *fakeExecutionStore) GetByID(_ context.Context, id uuid.UUID) (*model.WorkflowExecution, error) {
	execution, ok := s.executions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return execution, nil
}

func (s *fakeExecutionStore) MarkFailed(_ context.Context, id uuid.UUID, details model.JSONB) (bool, error) {
	execution, ok := s.executions[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if execution.Status != model.ExecutionRunning && execution.Status != model.ExecutionWaiting {
		return false, nil
	}
	now := time.Now()
	execution.Status = model.ExecutionFailed
	execution.CompletedAt = &now
	execution.EndedAt = &now
	execution.ErrorDetails = details
	s.details[id] = details
	return true, nil
}

type fakeLogStore struct {
	entries []model.WorkflowExecutionLog
}

func (s *fakeLogStore) Append(_ context.Context, entry *model.WorkflowExecutionLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

type fakeTenantStore struct {
	tenants map[uuid.UUID]*model.Tenant
}

func (s *fakeTenantStore) GetByID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return tenant, nil
}

type fakeEmailProvider struct {
	sent []provider.EmailMessage
}

func (p *fakeEmailProvider) SendEmail(_ context.Context, _ model.ProviderConfig, msg provider.EmailMessage) error {
	p.sent = append(p.sent, msg)
	return nil
}

type fakeStatusEmitter struct {
	emitted []string
}

func (e *fakeStatusEmitter) EmitExecutionStatus(_ context.Context, execution *model.WorkflowExecution, _ string) {
	e.emitted = append(e.emitted, execution.ID.String())
}

type harness struct {
	workflows  *fakeWorkflowStore
	executions *fakeExecutionStore
	logs       *fakeLogStore
	tenants    *fakeTenantStore
	email      *fakeEmailProvider
	status     *fakeStatusEmitter
	processor  *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		workflows: &fakeWorkflowStore{
			workflows:    make(map[uuid.UUID]*model.Workflow),
			activeDeltas: make(map[uuid.UUID]int),
			failedCounts: make(map[uuid.UUID]int),
		},
		executions: &fakeExecutionStore{
			executions: make(map[uuid.UUID]*model.WorkflowExecution),
			details:    make(map[uuid.UUID]model.JSONB),
		},
		logs:    &fakeLogStore{},
		tenants: &fakeTenantStore{tenants: make(map[uuid.UUID]*model.Tenant)},
		email:   &fakeEmailProvider{},
		status:  &fakeStatusEmitter{},
	}
	alerter := notify.NewAlerter(h.email, "alerts@barkbase.io", "https://app.barkbase.io", zap.NewNop())
	h.processor = NewProcessor(h.workflows, h.executions, h.logs, h.tenants, alerter, h.status, zap.NewNop())
	return h
}

// seed creates a running execution with an alert-enabled tenant behind it.
func (h *harness) seed() *model.WorkflowExecution {
	tenant := &model.Tenant{
		ID:   uuid.New(),
		Name: "Sunny Paws",
		Settings: model.JSONB{
			"failureAlertsEnabled":   true,
			"failureAlertRecipients": []interface{}{"ops@sunnypaws.com"},
			"emailProvider":          map[string]interface{}{"kind": "http", "url": "https://mail.example.com"},
		},
	}
	h.tenants.tenants[tenant.ID] = tenant

	workflow := &model.Workflow{
		ID:       uuid.New(),
		TenantID: tenant.ID,
		Name:     "Welcome Series",
	}
	h.workflows.workflows[workflow.ID] = workflow

	execution := &model.WorkflowExecution{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		WorkflowID: workflow.ID,
		RecordType: "pet",
		RecordID:   uuid.New(),
		Status:     model.ExecutionRunning,
	}
	h.executions.executions[execution.ID] = execution
	return execution
}

func stepDeadLetter(t *testing.T, execution *model.WorkflowExecution, lastError string, attempts int) queue.Delivery {
	t.Helper()
	envelope := queue.StepEnvelope{
		ExecutionID: execution.ID.String(),
		WorkflowID:  execution.WorkflowID.String(),
		TenantID:    execution.TenantID.String(),
		StepID:      uuid.New().String(),
		Action:      "send_sms",
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return queue.Delivery{
		Value:                 value,
		OriginTopic:           "barkbase.workflow.steps",
		ReceiveCount:          attempts,
		SentTimestamp:         time.Now().Add(-5 * time.Minute),
		FirstReceiveTimestamp: time.Now().Add(-4 * time.Minute),
		LastError:             lastError,
	}
}

func TestDeadLetterMarksExecutionFailed(t *testing.T) {
	h := newHarness(t)
	execution := h.seed()

	delivery := stepDeadLetter(t, execution, "sms send failed: provider returned status 500", 3)
	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("HandleDeadLetter returned error: %v", err)
	}

	if execution.Status != model.ExecutionFailed {
		t.Fatalf("expected failed status, got %q", execution.Status)
	}
	details := h.executions.details[execution.ID]
	if details["lastError"] != "sms send failed: provider returned status 500" {
		t.Fatalf("unexpected lastError in details: %v", details["lastError"])
	}
	if details["attemptCount"] != 3 {
		t.Fatalf("unexpected attemptCount: %v", details["attemptCount"])
	}
	if details["sourceQueue"] != "barkbase.workflow.steps" {
		t.Fatalf("unexpected sourceQueue: %v", details["sourceQueue"])
	}

	if h.workflows.activeDeltas[execution.WorkflowID] != -1 {
		t.Fatalf("expected active delta -1, got %d", h.workflows.activeDeltas[execution.WorkflowID])
	}
	if h.workflows.failedCounts[execution.WorkflowID] != 1 {
		t.Fatalf("expected failed count 1, got %d", h.workflows.failedCounts[execution.WorkflowID])
	}

	if len(h.logs.entries) != 1 || h.logs.entries[0].EventType != model.LogEventFailed {
		t.Fatalf("expected one failed log entry, got %+v", h.logs.entries)
	}
	if len(h.email.sent) != 1 {
		t.Fatalf("expected one alert email, got %d", len(h.email.sent))
	}
	if len(h.status.emitted) != 1 || h.status.emitted[0] != execution.ID.String() {
		t.Fatalf("expected one status emission for %s, got %v", execution.ID, h.status.emitted)
	}
}

func TestDeadLetterReprocessingDoesNotDoubleCount(t *testing.T) {
	h := newHarness(t)
	execution := h.seed()
	delivery := stepDeadLetter(t, execution, "boom", 3)

	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	if h.workflows.activeDeltas[execution.WorkflowID] != -1 {
		t.Fatalf("active delta double-counted: %d", h.workflows.activeDeltas[execution.WorkflowID])
	}
	if h.workflows.failedCounts[execution.WorkflowID] != 1 {
		t.Fatalf("failed count double-counted: %d", h.workflows.failedCounts[execution.WorkflowID])
	}
	if len(h.email.sent) != 1 {
		t.Fatalf("alert sent twice: %d", len(h.email.sent))
	}
}

func TestDeadLetterLeavesCancelledExecutionUntouched(t *testing.T) {
	h := newHarness(t)
	execution := h.seed()
	execution.Status = model.ExecutionCancelled

	delivery := stepDeadLetter(t, execution, "boom", 3)
	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("HandleDeadLetter returned error: %v", err)
	}

	if execution.Status != model.ExecutionCancelled {
		t.Fatalf("cancelled execution mutated to %q", execution.Status)
	}
	if h.workflows.activeDeltas[execution.WorkflowID] != 0 {
		t.Fatalf("active delta touched for cancelled execution: %d", h.workflows.activeDeltas[execution.WorkflowID])
	}
	if h.workflows.failedCounts[execution.WorkflowID] != 0 {
		t.Fatalf("failed count touched for cancelled execution: %d", h.workflows.failedCounts[execution.WorkflowID])
	}
	if len(h.email.sent) != 0 || len(h.status.emitted) != 0 {
		t.Fatalf("alerting fired for cancelled execution")
	}
}

func TestDeadLetterForUnknownExecutionIsDropped(t *testing.T) {
	h := newHarness(t)
	orphan := &model.WorkflowExecution{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		WorkflowID: uuid.New(),
	}

	delivery := stepDeadLetter(t, orphan, "boom", 3)
	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("expected orphaned dead letter to be dropped, got %v", err)
	}
	if len(h.logs.entries) != 0 {
		t.Fatalf("unexpected log entries: %+v", h.logs.entries)
	}
}

func TestDeadLetterTriggerEventIsDropped(t *testing.T) {
	h := newHarness(t)
	event := queue.EventEnvelope{
		EventType:  queue.EventPetCreated,
		RecordID:   uuid.New().String(),
		RecordType: "pet",
		TenantID:   uuid.New().String(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	delivery := queue.Delivery{
		Value:        value,
		OriginTopic:  "barkbase.domain.events",
		ReceiveCount: 3,
		LastError:    "enrollment failed",
	}

	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("expected trigger dead letter to be dropped, got %v", err)
	}
	for id := range h.workflows.failedCounts {
		t.Fatalf("failed counter touched for workflow %s", id)
	}
}

func TestDeadLetterUndecodablePayloadIsDropped(t *testing.T) {
	h := newHarness(t)
	delivery := queue.Delivery{Value: []byte("not json"), ReceiveCount: 3}
	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("expected undecodable dead letter to be dropped, got %v", err)
	}
}

func TestDeadLetterAlertSkippedWhenTenantOptedOut(t *testing.T) {
	h := newHarness(t)
	execution := h.seed()
	tenant := h.tenants.tenants[execution.TenantID]
	tenant.Settings["failureAlertsEnabled"] = false

	delivery := stepDeadLetter(t, execution, "boom", 3)
	if err := h.processor.HandleDeadLetter(context.Background(), delivery); err != nil {
		t.Fatalf("HandleDeadLetter returned error: %v", err)
	}
	if execution.Status != model.ExecutionFailed {
		t.Fatalf("execution should still be failed, got %q", execution.Status)
	}
	if len(h.email.sent) != 0 {
		t.Fatalf("alert sent to opted-out tenant")
	}
}
