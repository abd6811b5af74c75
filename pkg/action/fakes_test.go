package action

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/provider"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/record"
)

type fakeSegmentStore struct {
	segments map[uuid.UUID]*model.Segment
	members  map[string]struct{}
	counts   map[uuid.UUID]int
}

func newFakeSegmentStore() *fakeSegmentStore {
	return &fakeSegmentStore{
		segments: make(map[uuid.UUID]*model.Segment),
		members:  make(map[string]struct{}),
		counts:   make(map[uuid.UUID]int),
	}
}

func memberKey(segmentID uuid.UUID, recordType string, recordID uuid.UUID) string {
	return segmentID.String() + "/" + recordType + "/" + recordID.String()
}

func (s *fakeSegmentStore) GetSegment(_ context.Context, id uuid.UUID) (*model.Segment, error) {
	segment, ok := s.segments[id]
	if !ok {
		return nil, fmt.Errorf("segment not found")
	}
	return segment, nil
}

func (s *fakeSegmentStore) AddMember(_ context.Context, segmentID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error) {
	key := memberKey(segmentID, recordType, recordID)
	if _, ok := s.members[key]; ok {
		return false, nil
	}
	s.members[key] = struct{}{}
	s.counts[segmentID]++
	return true, nil
}

func (s *fakeSegmentStore) RemoveMember(_ context.Context, segmentID uuid.UUID, recordType string, recordID uuid.UUID) (bool, error) {
	key := memberKey(segmentID, recordType, recordID)
	if _, ok := s.members[key]; !ok {
		return false, nil
	}
	delete(s.members, key)
	s.counts[segmentID]--
	return true, nil
}

type fakeTaskStore struct {
	tasks []*model.Task
}

func (s *fakeTaskStore) CreateTask(_ context.Context, task *model.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	s.tasks = append(s.tasks, task)
	return nil
}

type fakeNotificationStore struct {
	notifications []*model.Notification
}

func (s *fakeNotificationStore) CreateNotification(_ context.Context, notification *model.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	s.notifications = append(s.notifications, notification)
	return nil
}

type fakeCommStore struct {
	entries []*model.CommunicationLog
}

func (s *fakeCommStore) CreateCommunicationLog(_ context.Context, entry *model.CommunicationLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

type fakeAuditStore struct {
	entries []*model.FieldAuditLog
}

func (s *fakeAuditStore) CreateFieldAudit(_ context.Context, entry *model.FieldAuditLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

type fakeWebhookStore struct {
	entries []*model.WebhookLog
}

func (s *fakeWebhookStore) CreateWebhookLog(_ context.Context, entry *model.WebhookLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

type fakeTemplateStore struct {
	subject string
	body    string
	err     error
}

func (s *fakeTemplateStore) GetEmailTemplate(_ context.Context, _, _ uuid.UUID) (string, string, error) {
	return s.subject, s.body, s.err
}

type fakeEnroller struct {
	enrollResult   EnrollResult
	enrollErr      error
	unenrollResult UnenrollResult
	lastEnroll     *EnrollRequest
	lastUnenroll   *UnenrollRequest
}

func (e *fakeEnroller) Enroll(_ context.Context, req EnrollRequest) (EnrollResult, error) {
	e.lastEnroll = &req
	return e.enrollResult, e.enrollErr
}

func (e *fakeEnroller) Unenroll(_ context.Context, req UnenrollRequest) (UnenrollResult, error) {
	e.lastUnenroll = &req
	return e.unenrollResult, nil
}

type fakeSMSProvider struct {
	sent []provider.SMSMessage
	err  error
}

func (p *fakeSMSProvider) SendSMS(_ context.Context, _ model.ProviderConfig, msg provider.SMSMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type fakeEmailProvider struct {
	sent []provider.EmailMessage
	err  error
}

func (p *fakeEmailProvider) SendEmail(_ context.Context, _ model.ProviderConfig, msg provider.EmailMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type fakeEmitter struct {
	emitted []*model.Notification
}

func (e *fakeEmitter) EmitNotification(_ context.Context, notification *model.Notification) {
	e.emitted = append(e.emitted, notification)
}

type fakeRecordRepo struct {
	fields  map[string]interface{}
	updates map[string]interface{}
}

func (r *fakeRecordRepo) Get(_ context.Context, _, _ uuid.UUID) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(r.fields))
	for key, value := range r.fields {
		fields[key] = value
	}
	return fields, nil
}

func (r *fakeRecordRepo) UpdateField(_ context.Context, _, _ uuid.UUID, field string, value interface{}) error {
	if r.updates == nil {
		r.updates = make(map[string]interface{})
	}
	r.updates[field] = value
	return nil
}

type testHarness struct {
	segments      *fakeSegmentStore
	tasks         *fakeTaskStore
	notifications *fakeNotificationStore
	comms         *fakeCommStore
	audits        *fakeAuditStore
	webhooks      *fakeWebhookStore
	templates     *fakeTemplateStore
	enroller      *fakeEnroller
	sms           *fakeSMSProvider
	email         *fakeEmailProvider
	emitter       *fakeEmitter
	petRepo       *fakeRecordRepo
}

func newHarness() *testHarness {
	return &testHarness{
		segments:      newFakeSegmentStore(),
		tasks:         &fakeTaskStore{},
		notifications: &fakeNotificationStore{},
		comms:         &fakeCommStore{},
		audits:        &fakeAuditStore{},
		webhooks:      &fakeWebhookStore{},
		templates:     &fakeTemplateStore{},
		enroller:      &fakeEnroller{},
		sms:           &fakeSMSProvider{},
		email:         &fakeEmailProvider{},
		emitter:       &fakeEmitter{},
		petRepo:       &fakeRecordRepo{fields: map[string]interface{}{}},
	}
}

func (h *testHarness) context(rec map[string]interface{}) *Context {
	registry := record.NewRegistry()
	registry.Register(record.TypePet, h.petRepo)

	return &Context{
		TenantID:    uuid.New(),
		WorkflowID:  uuid.New(),
		ExecutionID: uuid.New(),
		StepID:      uuid.New(),
		RecordType:  record.TypePet,
		RecordID:    uuid.New(),
		Record:      rec,
		Tenant: model.TenantSettings{
			SMSProvider:   model.ProviderConfig{Kind: "http", URL: "https://sms.example.com"},
			EmailProvider: model.ProviderConfig{Kind: "http", URL: "https://email.example.com"},
		},
		Deps: Deps{
			Records:        registry,
			Segments:       h.segments,
			Tasks:          h.tasks,
			Notifications:  h.notifications,
			Comms:          h.comms,
			Audits:         h.audits,
			WebhookLogs:    h.webhooks,
			Templates:      h.templates,
			Enroller:       h.enroller,
			SMS:            h.sms,
			Email:          h.email,
			Realtime:       h.emitter,
			WebhookTimeout: 2 * time.Second,
			Logger:         zap.NewNop(),
		},
	}
}
