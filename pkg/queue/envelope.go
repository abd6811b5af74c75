package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Domain event catalog emitted by the CRUD services.
const (
	EventBookingCreated      = "booking.created"
	EventBookingUpdated      = "booking.updated"
	EventBookingCancelled    = "booking.cancelled"
	EventPetCreated          = "pet.created"
	EventPetUpdated          = "pet.updated"
	EventVaccinationExpiring = "pet.vaccination_expiring"
	EventOwnerCreated        = "owner.created"
	EventOwnerUpdated        = "owner.updated"
	EventPaymentReceived     = "payment.received"
	EventPaymentFailed       = "payment.failed"
	EventInvoiceCreated      = "invoice.created"
	EventInvoiceOverdue      = "invoice.overdue"
	EventTaskCompleted       = "task.completed"
	EventWorkflowEnroll      = "workflow.enroll_action"
)

// EventEnvelope is the inbound message emitted by the CRUD collaborators.
type EventEnvelope struct {
	EventType  string                 `json:"eventType"`
	RecordID   string                 `json:"recordId"`
	RecordType string                 `json:"recordType"`
	TenantID   string                 `json:"tenantId"`
	EventData  map[string]interface{} `json:"eventData,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Source     string                 `json:"source"`
}

// RetryContext accumulates per-attempt failure detail for a step message.
type RetryContext struct {
	LastError     string `json:"lastError,omitempty"`
	AttemptNumber int    `json:"attemptNumber"`
}

// StepEnvelope is one unit of step work for the engine consumer.
type StepEnvelope struct {
	ExecutionID  string       `json:"executionId"`
	WorkflowID   string       `json:"workflowId"`
	TenantID     string       `json:"tenantId"`
	StepID       string       `json:"stepId"`
	Action       string       `json:"action"`
	RetryContext RetryContext `json:"retryContext"`
}

// annotateRetry records the latest failure in a step envelope's
// retryContext before the message is forwarded. Non-step payloads and
// unparseable values pass through unchanged; the headers stay the
// authoritative copy of the transport metadata.
func annotateRetry(value []byte, lastError string, attempt int) []byte {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(value, &payload); err != nil {
		return value
	}
	if _, ok := payload["executionId"]; !ok {
		return value
	}
	retry, err := json.Marshal(RetryContext{LastError: lastError, AttemptNumber: attempt})
	if err != nil {
		return value
	}
	payload["retryContext"] = retry
	annotated, err := json.Marshal(payload)
	if err != nil {
		return value
	}
	return annotated
}

// DeadLetterEnvelope is a step or trigger message plus the transport
// metadata accumulated across redeliveries. Exactly one of Step and Event
// is set.
type DeadLetterEnvelope struct {
	Step                    *StepEnvelope
	Event                   *EventEnvelope
	ApproximateReceiveCount int
	SentTimestamp           time.Time
	FirstReceiveTimestamp   time.Time
	LastError               string
	SourceQueue             string
}

// DecodeDeadLetter parses a dead-lettered delivery. Step messages are
// recognized by the presence of executionId; everything else is treated as
// a trigger envelope.
func DecodeDeadLetter(delivery Delivery) (*DeadLetterEnvelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(delivery.Value, &probe); err != nil {
		return nil, fmt.Errorf("unmarshal dead letter: %w", err)
	}

	envelope := &DeadLetterEnvelope{
		ApproximateReceiveCount: delivery.ReceiveCount,
		SentTimestamp:           delivery.SentTimestamp,
		FirstReceiveTimestamp:   delivery.FirstReceiveTimestamp,
		LastError:               delivery.LastError,
		SourceQueue:             delivery.OriginTopic,
	}

	if _, ok := probe["executionId"]; ok {
		var step StepEnvelope
		if err := json.Unmarshal(delivery.Value, &step); err != nil {
			return nil, fmt.Errorf("unmarshal step envelope: %w", err)
		}
		envelope.Step = &step
		return envelope, nil
	}

	var event EventEnvelope
	if err := json.Unmarshal(delivery.Value, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	envelope.Event = &event
	return envelope, nil
}
