package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_evaluations_total",
			Help: "Total number of evaluation passes",
		},
		[]string{"organization_id"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_engine_evaluation_duration_seconds",
			Help:    "Wall clock duration of an evaluation pass",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	RulesEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_engine_rules_evaluated_total",
			Help: "Total number of rules evaluated",
		},
	)

	RuleErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_engine_rule_errors_total",
			Help: "Total number of rules that failed during evaluation",
		},
	)

	// Alert metrics
	AlertsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_alerts_triggered_total",
			Help: "Total number of alerts created",
		},
		[]string{"severity"},
	)

	AlertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_engine_alerts_suppressed_total",
			Help: "Total number of triggered rules blocked by suppression",
		},
	)

	AlertTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_alert_transitions_total",
			Help: "Total number of alert status transitions",
		},
		[]string{"status"},
	)

	// Delivery metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_notifications_total",
			Help: "Total number of notification sends",
		},
		[]string{"channel", "outcome"}, // outcome: sent, failed
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_engine_broadcasts_total",
			Help: "Total number of alert broadcasts per sink",
		},
		[]string{"sink", "outcome"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
