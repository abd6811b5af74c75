// Package retention removes aged execution and log rows. Each tenant may
// narrow the platform windows through its settings; one misbehaving
// tenant never blocks the sweep for the rest.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/config"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/metrics"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
)

type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	List(ctx context.Context) ([]model.Tenant, error)
}

type LogStore interface {
	DeleteBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error)
}

type ExecutionStore interface {
	DeleteTerminalBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error)
}

// Options narrows a sweep. A nil TenantID sweeps every tenant; zero day
// values fall back to tenant settings and then the platform defaults.
type Options struct {
	TenantID      *uuid.UUID
	LogDays       int
	ExecutionDays int
}

type TenantResult struct {
	TenantID          uuid.UUID `json:"tenantId"`
	LogsDeleted       int64     `json:"logsDeleted"`
	ExecutionsDeleted int64     `json:"executionsDeleted"`
}

type Report struct {
	StartedAt         time.Time      `json:"startedAt"`
	FinishedAt        time.Time      `json:"finishedAt"`
	Tenants           []TenantResult `json:"tenants"`
	LogsDeleted       int64          `json:"logsDeleted"`
	ExecutionsDeleted int64          `json:"executionsDeleted"`
	Errors            []string       `json:"errors,omitempty"`
}

type Job struct {
	tenants    TenantStore
	logs       LogStore
	executions ExecutionStore
	defaults   config.RetentionConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewJob(tenants TenantStore, logs LogStore, executions ExecutionStore, defaults config.RetentionConfig, logger *zap.Logger) *Job {
	return &Job{
		tenants:    tenants,
		logs:       logs,
		executions: executions,
		defaults:   defaults,
		logger:     logger,
		now:        time.Now,
	}
}

// Sweep runs one pass. The returned error covers only the inability to
// list tenants; per-tenant failures land in the report.
func (j *Job) Sweep(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{StartedAt: j.now()}

	var tenants []model.Tenant
	if opts.TenantID != nil {
		tenant, err := j.tenants.GetByID(ctx, *opts.TenantID)
		if err != nil {
			return nil, fmt.Errorf("load tenant: %w", err)
		}
		tenants = []model.Tenant{*tenant}
	} else {
		var err error
		tenants, err = j.tenants.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tenants: %w", err)
		}
	}

	for i := range tenants {
		tenant := &tenants[i]
		result, err := j.sweepTenant(ctx, tenant, opts)
		if err != nil {
			j.logger.Error("retention sweep failed for tenant",
				zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("tenant %s: %v", tenant.ID, err))
			continue
		}
		report.Tenants = append(report.Tenants, result)
		report.LogsDeleted += result.LogsDeleted
		report.ExecutionsDeleted += result.ExecutionsDeleted
	}

	report.FinishedAt = j.now()
	j.logger.Info("retention sweep finished",
		zap.Int("tenants", len(report.Tenants)),
		zap.Int64("logs_deleted", report.LogsDeleted),
		zap.Int64("executions_deleted", report.ExecutionsDeleted),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (j *Job) sweepTenant(ctx context.Context, tenant *model.Tenant, opts Options) (TenantResult, error) {
	result := TenantResult{TenantID: tenant.ID}
	logDays, executionDays := j.windows(tenant, opts)
	now := j.now()

	logsDeleted, err := j.logs.DeleteBefore(ctx, tenant.ID, now.AddDate(0, 0, -logDays))
	if err != nil {
		return result, fmt.Errorf("delete logs: %w", err)
	}
	result.LogsDeleted = logsDeleted

	executionsDeleted, err := j.executions.DeleteTerminalBefore(ctx, tenant.ID, now.AddDate(0, 0, -executionDays))
	if err != nil {
		return result, fmt.Errorf("delete executions: %w", err)
	}
	result.ExecutionsDeleted = executionsDeleted

	if logsDeleted > 0 {
		metrics.RetentionDeleted.WithLabelValues(tenant.ID.String(), "logs").Add(float64(logsDeleted))
	}
	if executionsDeleted > 0 {
		metrics.RetentionDeleted.WithLabelValues(tenant.ID.String(), "executions").Add(float64(executionsDeleted))
	}
	return result, nil
}

// windows resolves the retention windows for one tenant: explicit
// override, then tenant settings, then platform defaults.
func (j *Job) windows(tenant *model.Tenant, opts Options) (logDays, executionDays int) {
	settings := tenant.DecodeSettings()

	logDays = opts.LogDays
	if logDays <= 0 {
		logDays = settings.LogRetentionDays
	}
	if logDays <= 0 {
		logDays = j.defaults.LogDays
	}

	executionDays = opts.ExecutionDays
	if executionDays <= 0 {
		executionDays = settings.ExecutionRetentionDays
	}
	if executionDays <= 0 {
		executionDays = j.defaults.ExecutionDays
	}
	return logDays, executionDays
}

// Run sweeps on the configured interval until ctx is cancelled.
func (j *Job) Run(ctx context.Context) {
	interval := j.defaults.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx, Options{}); err != nil {
				j.logger.Error("retention sweep failed", zap.Error(err))
				metrics.ProcessingErrors.WithLabelValues("retention").Inc()
			}
		}
	}
}
