package action

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/interpolate"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/provider"
)

// SendEmailExecutor emails the record's address, either from an inline
// subject/body or from a stored template referenced by id.
type SendEmailExecutor struct{}

func (e *SendEmailExecutor) Validate(config model.JSONB) ValidationResult {
	hasInline := configString(config, "subject") != "" && configString(config, "body") != ""
	_, hasTemplate := configUUID(config, "templateId")
	if !hasInline && !hasTemplate {
		return validationErrors("subject and body, or templateId, are required")
	}
	return validationErrors()
}

func (e *SendEmailExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	if consentRevoked(actx.Record, "email_consent", "emailConsent") {
		return skipped("email consent revoked")
	}

	address := recordString(actx.Record, "email", "emailAddress")
	if address == "" {
		return failed("record has no email field")
	}

	subject := configString(config, "subject")
	body := configString(config, "body")
	if subject == "" || body == "" {
		templateID, ok := configUUID(config, "templateId")
		if !ok {
			return failed("missing subject/body and no template configured")
		}
		var err error
		subject, body, err = actx.Deps.Templates.GetEmailTemplate(ctx, actx.TenantID, templateID)
		if err != nil {
			return failed("email template %s not found: %v", templateID, err)
		}
	}

	subject = interpolate.Interpolate(subject, actx.Record)
	body = interpolate.Interpolate(body, actx.Record)

	sendErr := actx.Deps.Email.SendEmail(ctx, actx.Tenant.EmailProvider, provider.EmailMessage{
		To:      address,
		Subject: subject,
		Body:    body,
	})

	status := "sent"
	if sendErr != nil {
		status = "failed"
	}
	recordID := actx.RecordID
	entry := &model.CommunicationLog{
		TenantID:   actx.TenantID,
		Channel:    model.ChannelEmail,
		Recipient:  address,
		Subject:    subject,
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
		return failed("email send failed: %v", sendErr)
	}

	return succeeded(map[string]interface{}{
		"recipient": address,
		"subject":   subject,
		"sentAt":    time.Now().UTC().Format(time.RFC3339),
	})
}
