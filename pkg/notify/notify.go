// Package notify emails tenant admins when an execution is marked failed
// by the dead-letter processor. Alerts are opt-in per tenant and always
// best-effort.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/metrics"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/provider"
)

type Alerter struct {
	email   provider.EmailProvider
	from    string
	baseURL string
	logger  *zap.Logger
}

func NewAlerter(email provider.EmailProvider, from, baseURL string, logger *zap.Logger) *Alerter {
	return &Alerter{email: email, from: from, baseURL: baseURL, logger: logger}
}

// FailureAlert describes one failed execution.
type FailureAlert struct {
	Tenant       *model.Tenant
	WorkflowID   uuid.UUID
	WorkflowName string
	ExecutionID  uuid.UUID
	FailedAt     time.Time
	AttemptCount int
	LastError    string
}

// Send delivers the alert to every configured recipient and returns the
// number of emails sent. Tenants without alerts enabled, recipients, or a
// configured email provider are skipped silently.
func (a *Alerter) Send(ctx context.Context, alert FailureAlert) int {
	settings := alert.Tenant.DecodeSettings()
	if !settings.FailureAlertsEnabled || len(settings.FailureAlertRecipients) == 0 {
		return 0
	}
	if !settings.EmailProvider.Configured() {
		a.logger.Warn("failure alerts enabled but no email provider configured",
			zap.String("tenant_id", alert.Tenant.ID.String()))
		return 0
	}

	subject := a.subject(alert)
	body := a.body(alert)

	sent := 0
	for _, recipient := range settings.FailureAlertRecipients {
		err := a.email.SendEmail(ctx, settings.EmailProvider, provider.EmailMessage{
			To:      recipient,
			From:    a.from,
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			a.logger.Warn("failed to send failure alert",
				zap.String("tenant_id", alert.Tenant.ID.String()),
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		metrics.FailureAlertsSent.WithLabelValues(alert.Tenant.ID.String()).Add(float64(sent))
	}
	return sent
}

func (a *Alerter) subject(alert FailureAlert) string {
	return fmt.Sprintf("[Workflow Execution Failed: %s]", alert.WorkflowName)
}

func (a *Alerter) body(alert FailureAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A workflow execution has exhausted its retries and been marked failed.\n\n")
	fmt.Fprintf(&b, "Tenant:       %s\n", alert.Tenant.Name)
	fmt.Fprintf(&b, "Workflow:     %s\n", alert.WorkflowName)
	fmt.Fprintf(&b, "Execution:    %s\n", alert.ExecutionID)
	fmt.Fprintf(&b, "Failed at:    %s\n", alert.FailedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Attempts:     %d\n", alert.AttemptCount)
	fmt.Fprintf(&b, "Last error:   %s\n\n", alert.LastError)
	fmt.Fprintf(&b, "Details: %s/workflows/%s/executions/%s\n", a.baseURL, alert.WorkflowID, alert.ExecutionID)
	return b.String()
}
