package action

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

func TestSendSMSSuccess(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{
		"phone": "+15550100",
		"name":  "Rex",
	})

	executor := &SendSMSExecutor{}
	result := executor.Execute(context.Background(), model.JSONB{"message": "Hi {{name}}"}, actx)

	if !result.Success || result.Skipped {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(harness.sms.sent) != 1 {
		t.Fatalf("expected 1 sms sent, got %d", len(harness.sms.sent))
	}
	if harness.sms.sent[0].Body != "Hi Rex" {
		t.Fatalf("expected interpolated body, got %q", harness.sms.sent[0].Body)
	}
	if len(harness.comms.entries) != 1 {
		t.Fatalf("expected communication log entry")
	}
	if harness.comms.entries[0].Status != "sent" {
		t.Fatalf("expected sent status, got %q", harness.comms.entries[0].Status)
	}
}

func TestSendSMSConsentRevokedSkips(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{
		"phone":       "+15550100",
		"sms_consent": false,
	})

	result := (&SendSMSExecutor{}).Execute(context.Background(), model.JSONB{"message": "Hi"}, actx)
	if !result.Skipped {
		t.Fatalf("expected skip for revoked consent, got %+v", result)
	}
	if len(harness.sms.sent) != 0 {
		t.Fatalf("expected no sms sent")
	}
}

func TestSendSMSNoPhoneFails(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{})

	result := (&SendSMSExecutor{}).Execute(context.Background(), model.JSONB{"message": "Hi"}, actx)
	if result.Success {
		t.Fatalf("expected failure without phone field")
	}
}

func TestSendSMSNoProviderFails(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{"phone": "+15550100"})
	actx.Tenant.SMSProvider = model.ProviderConfig{}

	result := (&SendSMSExecutor{}).Execute(context.Background(), model.JSONB{"message": "Hi"}, actx)
	if result.Success {
		t.Fatalf("expected failure without provider")
	}
}

func TestSendEmailFromTemplate(t *testing.T) {
	harness := newHarness()
	harness.templates.subject = "Welcome {{firstName}}"
	harness.templates.body = "Hello {{firstName}}"
	actx := harness.context(map[string]interface{}{
		"email":     "ada@example.com",
		"firstName": "Ada",
	})

	config := model.JSONB{"templateId": uuid.NewString()}
	result := (&SendEmailExecutor{}).Execute(context.Background(), config, actx)

	if !result.Success || result.Skipped {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(harness.email.sent) != 1 {
		t.Fatalf("expected 1 email")
	}
	if harness.email.sent[0].Subject != "Welcome Ada" {
		t.Fatalf("expected interpolated subject, got %q", harness.email.sent[0].Subject)
	}
}

func TestSendEmailConsentRevokedSkips(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{
		"email":         "ada@example.com",
		"email_consent": false,
	})

	result := (&SendEmailExecutor{}).Execute(context.Background(), model.JSONB{"subject": "s", "body": "b"}, actx)
	if !result.Skipped {
		t.Fatalf("expected skip, got %+v", result)
	}
}

func TestSendNotificationResolvesOwner(t *testing.T) {
	harness := newHarness()
	owner := uuid.New()
	actx := harness.context(map[string]interface{}{"ownerId": owner.String()})

	result := (&SendNotificationExecutor{}).Execute(context.Background(), model.JSONB{"message": "Checkup due"}, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(harness.notifications.notifications) != 1 {
		t.Fatalf("expected 1 notification")
	}
	if harness.notifications.notifications[0].UserID != owner {
		t.Fatalf("expected owner as target")
	}
	if len(harness.emitter.emitted) != 1 {
		t.Fatalf("expected realtime emit")
	}
}

func TestSendNotificationNoTargetFails(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{})

	result := (&SendNotificationExecutor{}).Execute(context.Background(), model.JSONB{"message": "m"}, actx)
	if result.Success {
		t.Fatalf("expected failure without target user")
	}
}

func TestCreateTaskDueDateOffset(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{"name": "Rex"})

	config := model.JSONB{"title": "Call {{name}} owner", "dueInDays": float64(3)}
	result := (&CreateTaskExecutor{}).Execute(context.Background(), config, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(harness.tasks.tasks) != 1 {
		t.Fatalf("expected 1 task")
	}

	task := harness.tasks.tasks[0]
	if task.Title != "Call Rex owner" {
		t.Fatalf("expected interpolated title, got %q", task.Title)
	}
	expected := time.Now().UTC().Add(72 * time.Hour)
	if task.DueAt == nil || task.DueAt.Sub(expected) > time.Minute || expected.Sub(*task.DueAt) > time.Minute {
		t.Fatalf("expected due date 3 days out, got %v", task.DueAt)
	}
}

func TestCreateTaskEmptyTitleFails(t *testing.T) {
	harness := newHarness()
	result := (&CreateTaskExecutor{}).Execute(context.Background(), model.JSONB{}, harness.context(nil))
	if result.Success {
		t.Fatalf("expected failure for empty title")
	}
}

func TestUpdateFieldIncrementFromNull(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{"visits": nil})

	config := model.JSONB{"field": "visits", "operation": "increment", "value": float64(5)}
	result := (&UpdateFieldExecutor{}).Execute(context.Background(), config, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if harness.petRepo.updates["visits"] != 5.0 {
		t.Fatalf("expected 5, got %v", harness.petRepo.updates["visits"])
	}
}

func TestUpdateFieldIncrementNonNumericCurrent(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{"visits": "abc"})

	config := model.JSONB{"field": "visits", "operation": "increment", "value": float64(5)}
	result := (&UpdateFieldExecutor{}).Execute(context.Background(), config, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if harness.petRepo.updates["visits"] != 5.0 {
		t.Fatalf("expected non-numeric current treated as 0, got %v", harness.petRepo.updates["visits"])
	}
}

func TestUpdateFieldDecrementDefaultsDelta(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{"credits": float64(10)})

	config := model.JSONB{"field": "credits", "operation": "decrement"}
	result := (&UpdateFieldExecutor{}).Execute(context.Background(), config, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if harness.petRepo.updates["credits"] != 9.0 {
		t.Fatalf("expected 9, got %v", harness.petRepo.updates["credits"])
	}
}

func TestUpdateFieldToggle(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{"flagged": true})

	config := model.JSONB{"field": "flagged", "operation": "toggle"}
	result := (&UpdateFieldExecutor{}).Execute(context.Background(), config, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if harness.petRepo.updates["flagged"] != false {
		t.Fatalf("expected toggle to false, got %v", harness.petRepo.updates["flagged"])
	}
}

func TestUpdateFieldUnknownOperationFails(t *testing.T) {
	harness := newHarness()
	config := model.JSONB{"field": "visits", "operation": "multiply"}
	result := (&UpdateFieldExecutor{}).Execute(context.Background(), config, harness.context(nil))
	if result.Success {
		t.Fatalf("expected failure for unknown operation")
	}
}

func TestUpdateFieldWritesAudit(t *testing.T) {
	harness := newHarness()
	actx := harness.context(map[string]interface{}{"status": "boarding"})

	config := model.JSONB{"field": "status", "operation": "set", "value": "checked_out"}
	result := (&UpdateFieldExecutor{}).Execute(context.Background(), config, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(harness.audits.entries) != 1 {
		t.Fatalf("expected audit entry")
	}
	audit := harness.audits.entries[0]
	if audit.Before["value"] != "boarding" || audit.After["value"] != "checked_out" {
		t.Fatalf("unexpected audit values %+v / %+v", audit.Before, audit.After)
	}
}

func TestAddToSegmentIdempotent(t *testing.T) {
	harness := newHarness()
	segmentID := uuid.New()
	harness.segments.segments[segmentID] = &model.Segment{ID: segmentID, Type: model.SegmentStatic}
	actx := harness.context(nil)

	config := model.JSONB{"segmentId": segmentID.String()}
	executor := &AddToSegmentExecutor{}

	first := executor.Execute(context.Background(), config, actx)
	if !first.Success || first.Skipped {
		t.Fatalf("expected first add to succeed, got %+v", first)
	}

	second := executor.Execute(context.Background(), config, actx)
	if !second.Skipped {
		t.Fatalf("expected second add to skip, got %+v", second)
	}

	if harness.segments.counts[segmentID] != 1 {
		t.Fatalf("expected member count incremented exactly once, got %d", harness.segments.counts[segmentID])
	}
}

func TestAddToSegmentDynamicFails(t *testing.T) {
	harness := newHarness()
	segmentID := uuid.New()
	harness.segments.segments[segmentID] = &model.Segment{ID: segmentID, Type: model.SegmentDynamic}

	config := model.JSONB{"segmentId": segmentID.String()}
	result := (&AddToSegmentExecutor{}).Execute(context.Background(), config, harness.context(nil))
	if result.Success {
		t.Fatalf("expected failure for dynamic segment")
	}
}

func TestRemoveFromSegmentAbsentSkips(t *testing.T) {
	harness := newHarness()
	segmentID := uuid.New()
	harness.segments.segments[segmentID] = &model.Segment{ID: segmentID, Type: model.SegmentStatic}

	config := model.JSONB{"segmentId": segmentID.String()}
	result := (&RemoveFromSegmentExecutor{}).Execute(context.Background(), config, harness.context(nil))
	if !result.Skipped {
		t.Fatalf("expected skip for absent membership, got %+v", result)
	}
}

func TestEnrollCircularFails(t *testing.T) {
	harness := newHarness()
	harness.enroller.enrollResult = EnrollResult{Outcome: EnrollRejectedCircular}
	actx := harness.context(nil)

	config := model.JSONB{"targetWorkflowId": actx.WorkflowID.String()}
	result := (&EnrollInWorkflowExecutor{}).Execute(context.Background(), config, actx)
	if result.Success {
		t.Fatalf("expected circular enrollment failure")
	}
}

func TestEnrollCooldownSkipsWithNextEligibleDate(t *testing.T) {
	harness := newHarness()
	eligible := time.Now().UTC().Add(48 * time.Hour)
	harness.enroller.enrollResult = EnrollResult{
		Outcome:          EnrollSkippedCooldown,
		NextEligibleDate: &eligible,
	}
	actx := harness.context(nil)

	config := model.JSONB{"targetWorkflowId": uuid.NewString()}
	result := (&EnrollInWorkflowExecutor{}).Execute(context.Background(), config, actx)
	if !result.Skipped {
		t.Fatalf("expected cooldown skip, got %+v", result)
	}
	if result.Output["nextEligibleDate"] != eligible.Format(time.RFC3339) {
		t.Fatalf("expected nextEligibleDate in output, got %v", result.Output)
	}
}

func TestEnrollInactiveSkips(t *testing.T) {
	harness := newHarness()
	harness.enroller.enrollResult = EnrollResult{Outcome: EnrollSkippedInactive}

	config := model.JSONB{"targetWorkflowId": uuid.NewString()}
	result := (&EnrollInWorkflowExecutor{}).Execute(context.Background(), config, harness.context(nil))
	if !result.Skipped {
		t.Fatalf("expected skip for inactive target, got %+v", result)
	}
}

func TestUnenrollNoMatchSkips(t *testing.T) {
	harness := newHarness()

	config := model.JSONB{"targetWorkflowId": UnenrollAllTarget}
	result := (&UnenrollFromWorkflowExecutor{}).Execute(context.Background(), config, harness.context(nil))
	if !result.Skipped {
		t.Fatalf("expected skip when nothing matched, got %+v", result)
	}
	if harness.enroller.lastUnenroll == nil {
		t.Fatalf("expected unenroll request")
	}
	if harness.enroller.lastUnenroll.TargetWorkflowID != nil {
		t.Fatalf("expected all-target request to carry no workflow id")
	}
}

func TestUnenrollCancelsMatches(t *testing.T) {
	harness := newHarness()
	harness.enroller.unenrollResult = UnenrollResult{CancelledCount: 2}

	config := model.JSONB{"targetWorkflowId": uuid.NewString()}
	result := (&UnenrollFromWorkflowExecutor{}).Execute(context.Background(), config, harness.context(nil))
	if !result.Success || result.Skipped {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Output["cancelledCount"] != 2 {
		t.Fatalf("expected cancelledCount 2, got %v", result.Output)
	}
}

func TestWebhookSuccessAndLog(t *testing.T) {
	var received *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	harness := newHarness()
	actx := harness.context(map[string]interface{}{"name": "Rex"})
	actx.Deps.HTTPClient = server.Client()

	config := model.JSONB{
		"url":     server.URL + "/hook",
		"body":    `{"pet":"{{name}}"}`,
		"headers": map[string]interface{}{"X-Pet": "{{name}}"},
	}
	result := (&WebhookExecutor{}).Execute(context.Background(), config, actx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if received == nil || received.Header.Get("X-Pet") != "Rex" {
		t.Fatalf("expected interpolated header")
	}
	if len(harness.webhooks.entries) != 1 {
		t.Fatalf("expected webhook log entry")
	}
	if harness.webhooks.entries[0].StatusCode != http.StatusOK {
		t.Fatalf("expected 200 in log, got %d", harness.webhooks.entries[0].StatusCode)
	}
}

func TestWebhookNon2xxFailsButLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	harness := newHarness()
	actx := harness.context(nil)
	actx.Deps.HTTPClient = server.Client()

	config := model.JSONB{"url": server.URL}
	result := (&WebhookExecutor{}).Execute(context.Background(), config, actx)
	if result.Success {
		t.Fatalf("expected failure for non-2xx response")
	}
	if len(harness.webhooks.entries) != 1 {
		t.Fatalf("expected webhook log despite failure")
	}
}

func TestWebhookMissingTimeoutFails(t *testing.T) {
	harness := newHarness()
	actx := harness.context(nil)
	actx.Deps.WebhookTimeout = 0

	result := (&WebhookExecutor{}).Execute(context.Background(), model.JSONB{"url": "https://example.com"}, actx)
	if result.Success {
		t.Fatalf("expected failure without configured timeout")
	}
}

func TestWebhookValidateToleratesTokens(t *testing.T) {
	executor := &WebhookExecutor{}

	result := executor.Validate(model.JSONB{"url": "https://example.com/hooks/{{pet.id}}"})
	if !result.Valid {
		t.Fatalf("expected template URL to validate, got %v", result.Errors)
	}

	result = executor.Validate(model.JSONB{"url": "not a url"})
	if result.Valid {
		t.Fatalf("expected malformed url to fail validation")
	}
}
