// Package metrics exposes Prometheus collectors for the backup manager.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeBusy    = "busy"
	OutcomeRefused = "refused"

	// OutcomeMismatch is a reset rejected by the confirmation check.
	OutcomeMismatch = "confirmation_mismatch"
)

// Deletion reasons.
const (
	ReasonUser      = "user"
	ReasonRetention = "retention"
)

var (
	backupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_backup_runs_total",
			Help: "Total number of backup runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	backupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cashier_backup_duration_seconds",
			Help:    "Duration of successful database dumps in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"trigger"},
	)

	backupLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_backup_last_success_timestamp_seconds",
		Help: "Unix time of the last successful backup",
	})

	artifactsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_backup_artifacts_deleted_total",
			Help: "Total number of deleted backup artifacts by reason",
		},
		[]string{"reason"},
	)

	resetRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_reset_runs_total",
			Help: "Total number of data reset attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveBackup records the outcome of one backup run.
func ObserveBackup(trigger, outcome string, duration time.Duration) {
	backupRuns.WithLabelValues(trigger, outcome).Inc()
	if outcome == OutcomeSuccess {
		backupDuration.WithLabelValues(trigger).Observe(duration.Seconds())
		backupLastSuccess.SetToCurrentTime()
	}
}

// ArtifactDeleted records one deleted artifact.
func ArtifactDeleted(reason string) {
	artifactsDeleted.WithLabelValues(reason).Inc()
}

// ObserveReset records the outcome of one reset attempt.
func ObserveReset(outcome string) {
	resetRuns.WithLabelValues(outcome).Inc()
}
