// Package provider abstracts the per-tenant SMS and email delivery
// services. Providers are configured in tenant settings; the engine never
// hard-codes a vendor.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

type SMSMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
	From string `json:"from,omitempty"`
}

type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
}

type SMSProvider interface {
	SendSMS(ctx context.Context, cfg model.ProviderConfig, msg SMSMessage) error
}

type EmailProvider interface {
	SendEmail(ctx context.Context, cfg model.ProviderConfig, msg EmailMessage) error
}

// HTTPProvider delivers messages through a tenant-configured HTTP API.
// It serves both channels; no SMS or email vendor SDK is pulled in.
type HTTPProvider struct {
	client *http.Client
}

func NewHTTPProvider(timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProvider) SendSMS(ctx context.Context, cfg model.ProviderConfig, msg SMSMessage) error {
	if msg.From == "" {
		msg.From = cfg.From
	}
	return p.post(ctx, cfg, msg)
}

func (p *HTTPProvider) SendEmail(ctx context.Context, cfg model.ProviderConfig, msg EmailMessage) error {
	if msg.From == "" {
		msg.From = cfg.From
	}
	return p.post(ctx, cfg, msg)
}

func (p *HTTPProvider) post(ctx context.Context, cfg model.ProviderConfig, payload interface{}) error {
	if cfg.URL == "" {
		return fmt.Errorf("provider url is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal provider payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}

// LogProvider writes deliveries to the log instead of sending them. Used
// in development and tests.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) SendSMS(_ context.Context, _ model.ProviderConfig, msg SMSMessage) error {
	p.logger.Info("sms delivery (log provider)", zap.String("to", msg.To), zap.String("body", msg.Body))
	return nil
}

func (p *LogProvider) SendEmail(_ context.Context, _ model.ProviderConfig, msg EmailMessage) error {
	p.logger.Info("email delivery (log provider)", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
