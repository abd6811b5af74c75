package action

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/interpolate"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

const webhookResponseLimit = 64 * 1024

// WebhookExecutor issues an HTTP call with interpolated URL, headers, and
// body, bounded by the configured timeout. The full request/response pair
// is persisted regardless of outcome.
type WebhookExecutor struct{}

func (e *WebhookExecutor) Validate(config model.JSONB) ValidationResult {
	raw := configString(config, "url")
	if raw == "" {
		return validationErrors("url is required")
	}
	// Template tokens are tolerated pre-substitution; well-formedness is
	// checked against the URL with tokens blanked out.
	stripped := interpolate.Interpolate(raw, map[string]interface{}{})
	if stripped != "" {
		parsed, err := url.Parse(stripped)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return validationErrors("url must be a valid http(s) URL")
		}
	}
	return validationErrors()
}

func (e *WebhookExecutor) Execute(ctx context.Context, config model.JSONB, actx *Context) Result {
	rawURL := configString(config, "url")
	if rawURL == "" {
		return failed("url is required")
	}

	if actx.Deps.WebhookTimeout <= 0 {
		return failed("webhook timeout is not configured")
	}

	targetURL := interpolate.Interpolate(rawURL, actx.Record)
	parsed, err := url.Parse(targetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return failed("malformed webhook url %q", targetURL)
	}

	method := strings.ToUpper(configString(config, "method"))
	if method == "" {
		method = http.MethodPost
	}

	body := interpolate.Interpolate(configString(config, "body"), actx.Record)

	headers := model.JSONB{}
	if configured, ok := config["headers"].(map[string]interface{}); ok {
		for key, value := range configured {
			if text, ok := value.(string); ok {
				headers[key] = interpolate.Interpolate(text, actx.Record)
			}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, actx.Deps.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, targetURL, strings.NewReader(body))
	if err != nil {
		return failed("build webhook request: %v", err)
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value.(string))
	}

	client := actx.Deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	started := time.Now()
	resp, callErr := client.Do(req)

	executionID := actx.ExecutionID
	entry := &model.WebhookLog{
		TenantID:       actx.TenantID,
		ExecutionID:    &executionID,
		URL:            targetURL,
		Method:         method,
		RequestHeaders: headers,
		RequestBody:    body,
		DurationMs:     time.Since(started).Milliseconds(),
	}

	var responseBody string
	if callErr != nil {
		entry.Error = callErr.Error()
	} else {
		defer resp.Body.Close()
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, webhookResponseLimit))
		if readErr != nil {
			entry.Error = readErr.Error()
		}
		responseBody = string(raw)
		entry.StatusCode = resp.StatusCode
		entry.ResponseBody = responseBody
		entry.DurationMs = time.Since(started).Milliseconds()
	}

	if err := actx.Deps.WebhookLogs.CreateWebhookLog(ctx, entry); err != nil {
		actx.Deps.Logger.Warn("failed to write webhook log", zap.Error(err))
	}

	if callErr != nil {
		return failed("webhook call failed: %v", callErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed("webhook returned status %d", resp.StatusCode)
	}

	return succeeded(map[string]interface{}{
		"statusCode": resp.StatusCode,
		"durationMs": entry.DurationMs,
	})
}
