// Package metrics holds the Prometheus collectors of the billing pipeline.
// Collectors register with the default registry, served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inbound_genie"

// CallsBilled counts billing attempts by outcome
// (billed, already_billed, not_billable, error).
var CallsBilled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "billing",
	Name:      "calls_total",
	Help:      "Billing attempts for ended calls by outcome.",
}, []string{"outcome"})

var CreditsDeducted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "billing",
	Name:      "credits_deducted_total",
	Help:      "Total credits deducted from account balances.",
})

var LowBalanceAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "billing",
	Name:      "low_balance_alerts_total",
	Help:      "Low-balance notifications emitted by severity.",
}, []string{"severity"})

var NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notify",
	Name:      "failures_total",
	Help:      "Notifications that could not be delivered to a sink.",
})

var ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "runs_total",
	Help:      "Reconciliation runs by result (ok, locked, error).",
}, []string{"result"})

var ReconcileCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "calls_total",
	Help:      "Calls handled by reconciliation (processed, skipped, error).",
}, []string{"result"})

var ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "duration_seconds",
	Help:      "Wall time of one account reconciliation.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
})

// Outcome label values shared by billing and the webhook handler.
const (
	OutcomeBilled        = "billed"
	OutcomeAlreadyBilled = "already_billed"
	OutcomeNotBillable   = "not_billable"
	OutcomeError         = "error"
)
