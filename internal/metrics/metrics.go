package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// EntitlementMetrics holds the quota decision and sweep instruments.
type EntitlementMetrics struct {
	// usage_type, result
	UsageCheckTotal *prometheus.CounterVec
	// result, reason
	TTSDecisionTotal *prometheus.CounterVec
	TTSCharsDebited  prometheus.Counter

	// action: requested/approved/rejected/blocked/cancelled, result
	UpgradeActionTotal *prometheus.CounterVec

	SweepRunsTotal     *prometheus.CounterVec
	SweepExpiredTotal  prometheus.Counter
	SweepFailuresTotal prometheus.Counter
	SweepDuration      prometheus.Histogram

	// result: success/failed/skipped
	LockAcquireTotal *prometheus.CounterVec

	EventPublishTotal *prometheus.CounterVec

	// type, result: recorded/duplicate/error
	DeadLetterTotal *prometheus.CounterVec
}

// New registers the metrics on reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *EntitlementMetrics {
	f := promauto.With(reg)
	return &EntitlementMetrics{
		UsageCheckTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studybuddy_usage_check_total",
				Help: "Daily usage checks by usage type and result",
			},
			[]string{"usage_type", "result"},
		),
		TTSDecisionTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studybuddy_tts_decision_total",
				Help: "Premium voice decisions by result and reason",
			},
			[]string{"result", "reason"},
		),
		TTSCharsDebited: f.NewCounter(
			prometheus.CounterOpts{
				Name: "studybuddy_tts_chars_debited_total",
				Help: "Premium voice characters debited",
			},
		),
		UpgradeActionTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studybuddy_upgrade_action_total",
				Help: "Upgrade workflow actions by action and result",
			},
			[]string{"action", "result"},
		),
		SweepRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studybuddy_expiry_sweep_runs_total",
				Help: "Expiry sweep runs by result",
			},
			[]string{"result"},
		),
		SweepExpiredTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "studybuddy_expiry_sweep_downgraded_total",
				Help: "Subscriptions downgraded by the expiry sweep",
			},
		),
		SweepFailuresTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "studybuddy_expiry_sweep_record_failures_total",
				Help: "Per-record failures skipped by the expiry sweep",
			},
		),
		SweepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "studybuddy_expiry_sweep_duration_seconds",
				Help:    "Duration of expiry sweep runs",
				Buckets: prometheus.DefBuckets,
			},
		),
		LockAcquireTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studybuddy_sweep_lock_acquire_total",
				Help: "Distributed sweep lock acquisitions by result",
			},
			[]string{"result"},
		),
		EventPublishTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studybuddy_event_publish_total",
				Help: "Subscription events published by type and result",
			},
			[]string{"type", "result"},
		),
		DeadLetterTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studybuddy_dead_letter_events_total",
				Help: "Dead-lettered subscription events received by type and result",
			},
			[]string{"type", "result"},
		),
	}
}
