package action

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/interpolate"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/provider"
)

// SendSMSExecutor texts the record's phone number through the tenant's
// configured SMS provider. Records that revoked SMS consent are skipped.
type SendSMSExecutor struct{}

func (e *SendSMSExecutor) Validate(config model.JSONB) ValidationResult {
	if configString(config, "message") == "" {
		return validationErrors("message is required")
	}
	return validationErrors()
}

func (e *SendSMSExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	message := configString(config, "message")
	if message == "" {
		return failed("message is required")
	}

	if consentRevoked(actx.Record, "sms_consent", "smsConsent") {
		return skipped("sms consent revoked")
	}

	phone := recordString(actx.Record, "phone", "phoneNumber")
	if phone == "" {
		return failed("record has no phone field")
	}

	if !actx.Tenant.SMSProvider.Configured() {
		return failed("no sms provider configured for tenant")
	}

	body := interpolate.Interpolate(message, actx.Record)

	sendErr := actx.Deps.SMS.SendSMS(ctx, actx.Tenant.SMSProvider, provider.SMSMessage{
		To:   phone,
		Body: body,
	})

	status := "sent"
	if sendErr != nil {
		status = "failed"
	}
	recordID := actx.RecordID
	entry := &model.CommunicationLog{
		TenantID:   actx.TenantID,
		Channel:    model.ChannelSMS,
		Recipient:  phone,
		Body:       body,
		Status:     status,
		RecordType: string(actx.RecordType),
		RecordID:   &recordID,
		WorkflowID: &actx.WorkflowID,
	}
	if err := actx.Deps.Comms.CreateCommunicationLog(ctx, entry); err != nil {
		actx.Deps.Logger.Warn("failed to write communication log", zap.Error(err))
	}

	if sendErr != nil {
		return failed("sms send failed: %v", sendErr)
	}

	return succeeded(map[string]interface{}{
		"recipient": phone,
		"sentAt":    time.Now().UTC().Format(time.RFC3339),
	})
}
