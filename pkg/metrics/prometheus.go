package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsEnrolled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_executions_enrolled_total",
			Help: "Total number of workflow executions created by enrollment",
		},
		[]string{"tenant_id", "workflow_id"},
	)

	ExecutionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_executions_completed_total",
			Help: "Total number of workflow executions that reached the final step",
		},
		[]string{"tenant_id", "workflow_id"},
	)

	ExecutionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_executions_failed_total",
			Help: "Total number of workflow executions marked failed by the dead-letter processor",
		},
		[]string{"tenant_id", "workflow_id"},
	)

	ExecutionsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_executions_cancelled_total",
			Help: "Total number of workflow executions cancelled by unenrollment",
		},
		[]string{"tenant_id", "workflow_id"},
	)

	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_actions_total",
			Help: "Total number of action executions by type and outcome",
		},
		[]string{"tenant_id", "action_type", "status"},
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barkbase_workflow_action_duration_seconds",
			Help:    "Action execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		},
		[]string{"action_type"},
	)

	DeadLettersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_dead_letters_total",
			Help: "Total number of dead-lettered messages processed by outcome",
		},
		[]string{"tenant_id", "outcome"},
	)

	FailureAlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_failure_alerts_total",
			Help: "Total number of failure alert emails sent to tenant admins",
		},
		[]string{"tenant_id"},
	)

	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_retention_deleted_total",
			Help: "Total number of rows removed by the retention sweep",
		},
		[]string{"tenant_id", "kind"},
	)

	ProcessingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barkbase_workflow_processing_errors_total",
			Help: "Total number of consumer-level processing errors by component",
		},
		[]string{"component"},
	)
)
