package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentledger_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	authzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_authz_decisions_total",
		Help: "Authorization decisions by role, resource kind, action and outcome",
	}, []string{"role", "kind", "action", "result", "reason"})

	lifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_lifecycle_transitions_total",
		Help: "Committed state transitions per entity",
	}, []string{"entity", "from", "to"})

	rejectedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_rejected_operations_total",
		Help: "Operations rejected by a domain rule",
	}, []string{"operation", "kind"})

	auditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_audit_events_total",
		Help: "Audit records handled per sink and result",
	}, []string{"sink", "result"})

	auditQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rentledger_audit_queue_depth",
		Help: "Audit records waiting for delivery",
	})

	storageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_storage_retries_total",
		Help: "Retries of transient storage failures",
	}, []string{"result"})

	sweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_late_payment_sweeps_total",
		Help: "Late-payment sweep runs by result",
	}, []string{"result"})

	sweepMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentledger_payments_marked_late_total",
		Help: "Payments moved from pending to late by the sweep",
	})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"backend"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveAuthz counts one authorization decision. reason is empty on allow.
func ObserveAuthz(role, kind, action string, allowed bool, reason string) {
	result := "allow"
	if !allowed {
		result = "deny"
	}
	authzDecisions.WithLabelValues(role, kind, action, result, reason).Inc()
}

// ObserveTransition records a committed state change
func ObserveTransition(entity, from, to string) {
	lifecycleTransitions.WithLabelValues(entity, from, to).Inc()
}

// ObserveRejection records an operation refused by a domain rule
func ObserveRejection(operation, kind string) {
	rejectedOperations.WithLabelValues(operation, kind).Inc()
}

// ObserveAudit records delivery of an audit record to a sink
func ObserveAudit(sink, result string) {
	auditEvents.WithLabelValues(sink, result).Inc()
}

// SetAuditQueueDepth sets the number of pending audit records
func SetAuditQueueDepth(n int) {
	auditQueueDepth.Set(float64(n))
}

// ObserveStorageRetry records the outcome of a retried storage operation
func ObserveStorageRetry(result string) {
	storageRetries.WithLabelValues(result).Inc()
}

// ObserveSweep records one late-payment sweep and the payments it marked
func ObserveSweep(result string, marked int) {
	sweepRuns.WithLabelValues(result).Inc()
	if marked > 0 {
		sweepMarked.Add(float64(marked))
	}
}

// ObserveRateLimited counts a request rejected by the limiter
func ObserveRateLimited(backend string) {
	rateLimited.WithLabelValues(backend).Inc()
}
