package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/action"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/record"
)

type fakeWorkflowStore struct {
	workflows    map[uuid.UUID]*model.Workflow
	steps        map[uuid.UUID]*model.WorkflowStep
	activeDeltas map[uuid.UUID]int
	failedCounts map[uuid.UUID]int
}

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{
		workflows:    make(map[uuid.UUID]*model.Workflow),
		steps:        make(map[uuid.UUID]*model.WorkflowStep),
		activeDeltas: make(map[uuid.UUID]int),
		failedCounts: make(map[uuid.UUID]int),
	}
}

func (s *fakeWorkflowStore) add(workflow *model.Workflow, steps ...*model.WorkflowStep) {
	s.workflows[workflow.ID] = workflow
	for _, step := range steps {
		step.WorkflowID = workflow.ID
		s.steps[step.ID] = step
	}
}

func (s *fakeWorkflowStore) GetByID(_ context.Context, id uuid.UUID) (*model.Workflow, error) {
	workflow, ok := s.workflows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return workflow, nil
}

func (s *fakeWorkflowStore) ListActiveForTrigger(_ context.Context, tenantID uuid.UUID, triggerEvent, objectType string) ([]model.Workflow, error) {
	var out []model.Workflow
	for _, workflow := range s.workflows {
		if workflow.TenantID == tenantID && workflow.Status == model.WorkflowActive &&
			workflow.TriggerEvent == triggerEvent && workflow.ObjectType == objectType {
			out = append(out, *workflow)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeWorkflowStore) GetStep(_ context.Context, stepID uuid.UUID) (*model.WorkflowStep, error) {
	step, ok := s.steps[stepID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return step, nil
}

func (s *fakeWorkflowStore) EntryStep(_ context.Context, workflowID uuid.UUID) (*model.WorkflowStep, error) {
	for _, step := range s.steps {
		if step.WorkflowID == workflowID && step.IsEntryPoint {
			return step, nil
		}
	}
	return nil, fmt.Errorf("workflow has no entry step")
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
	cancelled  map[uuid.UUID]model.JSONB
}

func newFakeExecutionStore() *fakeExecutionStore {
	return &fakeExecutionStore{
		executions: make(map[uuid.UUID]*model.WorkflowExecution),
		cancelled:  make(map[uuid.UUID]model.JSONB),
	}
}

func (s *fakeExecutionStore) add(execution *model.WorkflowExecution) {
	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}
	s.executions[execution.ID] = execution
}

func (s *fakeExecutionStore) Create(_ context.Context, execution *model.WorkflowExecution) error {
	execution.ID = uuid.New()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now()
	}
	s.executions[execution.ID] = execution
	return nil
}

func (s *fakeExecutionStore) GetByID(_ context.Context, id uuid.UUID) (*model.WorkflowExecution, error) {
	execution, ok := s.executions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return execution, nil
}

func (s *fakeExecutionStore) HasActive(_ context.Context, workflowID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error) {
	for _, execution := range s.executions {
		if execution.WorkflowID == workflowID && execution.RecordType == recordType &&
			execution.RecordID == recordID && execution.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeExecutionStore) LatestFor(_ context.Context, workflowID uuid.UUID, recordType string, recordID uuid.UUID) (*model.WorkflowExecution, error) {
	var latest *model.WorkflowExecution
	for _, execution := range s.executions {
		if execution.WorkflowID != workflowID || execution.RecordType != recordType || execution.RecordID != recordID {
			continue
		}
		if latest == nil || execution.CreatedAt.After(latest.CreatedAt) {
			latest = execution
		}
	}
	return latest, nil
}

func (s *fakeExecutionStore) ListActiveForRecord(_ context.Context, tenantID uuid.UUID, recordType string, recordID uuid.UUID, excludeWorkflowID uuid.UUID, targetWorkflowID *uuid.UUID) ([]model.WorkflowExecution, error) {
	var out []model.WorkflowExecution
	for _, execution := range s.executions {
		if execution.TenantID != tenantID || execution.RecordType != recordType ||
			execution.RecordID != recordID || !execution.Status.IsActive() {
			continue
		}
		if execution.WorkflowID == excludeWorkflowID {
			continue
		}
		if targetWorkflowID != nil && execution.WorkflowID != *targetWorkflowID {
			continue
		}
		out = append(out, *execution)
	}
	return out, nil
}

func (s *fakeExecutionStore) AdvanceStep(_ context.Context, id, stepID uuid.UUID) error {
	execution, ok := s.executions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	next := stepID
	execution.CurrentStepID = &next
	execution.Status = model.ExecutionWaiting
	return nil
}

func (s *fakeExecutionStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	execution, ok := s.executions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if execution.Status == model.ExecutionWaiting {
		execution.Status = model.ExecutionRunning
	}
	return nil
}

func (s *fakeExecutionStore) Complete(_ context.Context, id uuid.UUID) error {
	execution, ok := s.executions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	execution.Status = model.ExecutionCompleted
	execution.CompletedAt = &now
	execution.EndedAt = &now
	return nil
}

func (s *fakeExecutionStore) Cancel(_ context.Context, id uuid.UUID, provenance model.JSONB) error {
	execution, ok := s.executions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	execution.Status = model.ExecutionCancelled
	execution.EndedAt = &now
	s.cancelled[id] = provenance
	return nil
}

type fakeLogStore struct {
	entries []model.WorkflowExecutionLog
}

func (s *fakeLogStore) Append(_ context.Context, entry *model.WorkflowExecutionLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *fakeLogStore) byEvent(eventType string) []model.WorkflowExecutionLog {
	var out []model.WorkflowExecutionLog
	for _, entry := range s.entries {
		if entry.EventType == eventType {
			out = append(out, entry)
		}
	}
	return out
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

type fakePublisher struct {
	published []queue.StepEnvelope
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	envelope, ok := payload.(queue.StepEnvelope)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", payload)
	}
	p.published = append(p.published, envelope)
	return nil
}

type fakeTaskStore struct {
	tasks []*model.Task
}

func (s *fakeTaskStore) CreateTask(_ context.Context, task *model.Task) error {
	task.ID = uuid.New()
	s.tasks = append(s.tasks, task)
	return nil
}

type fakeRecordRepo struct {
	records map[uuid.UUID]map[string]interface{}
}

func (r *fakeRecordRepo) Get(_ context.Context, _ uuid.UUID, id uuid.UUID) (map[string]interface{}, error) {
	fields, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s not found", id)
	}
	copied := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied, nil
}

func (r *fakeRecordRepo) UpdateField(_ context.Context, _ uuid.UUID, id uuid.UUID, field string, value interface{}) error {
	fields, ok := r.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	fields[field] = value
	return nil
}

// harness wires a full engine stack over in-memory stores.
type harness struct {
	workflows  *fakeWorkflowStore
	executions *fakeExecutionStore
	logs       *fakeLogStore
	tenants    *fakeTenantStore
	publisher  *fakePublisher
	tasks      *fakeTaskStore
	petRepo    *fakeRecordRepo
	manager    *Manager
	processor  *StepProcessor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		workflows:  newFakeWorkflowStore(),
		executions: newFakeExecutionStore(),
		logs:       &fakeLogStore{},
		tenants:    &fakeTenantStore{tenants: make(map[uuid.UUID]*model.Tenant)},
		publisher:  &fakePublisher{},
		tasks:      &fakeTaskStore{},
		petRepo:    &fakeRecordRepo{records: make(map[uuid.UUID]map[string]interface{})},
	}

	logger := zap.NewNop()
	h.manager = NewManager(h.workflows, h.executions, h.logs, h.publisher, logger)

	registry := record.NewRegistry()
	registry.Register(record.TypePet, h.petRepo)

	deps := action.Deps{
		Records:  registry,
		Tasks:    h.tasks,
		Enroller: h.manager,
		Logger:   logger,
	}
	h.processor = NewStepProcessor(h.workflows, h.executions, h.logs, h.tenants,
		h.publisher, action.NewDispatcher(logger), deps, logger)
	return h
}

func (h *harness) addTenant(id uuid.UUID) {
	h.tenants.tenants[id] = &model.Tenant{ID: id, Name: "Sunny Paws"}
}

func stepDelivery(t *testing.T, envelope queue.StepEnvelope) queue.Delivery {
	t.Helper()
	value, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return queue.Delivery{Value: value, ReceiveCount: 1}
}
