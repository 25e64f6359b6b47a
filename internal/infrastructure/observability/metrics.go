package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Transaction metrics
	TransactionsTotal *prometheus.CounterVec
	ChargeDuration    *prometheus.HistogramVec
	AmbiguousCharges  *prometheus.CounterVec

	// Webhook metrics
	WebhooksProcessed *prometheus.CounterVec

	// Outcome convergence metrics
	OutcomeMismatches prometheus.Counter

	// Publisher metrics
	EventsPublished   *prometheus.CounterVec
	PublishRetries    *prometheus.CounterVec
	StuckEvents       prometheus.Counter
	PendingEvents     prometheus.Gauge

	// Reconcile metrics
	ReconcileAttempts *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of transactions by terminal status",
			},
			[]string{"status"},
		),
		ChargeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "charge_duration_seconds",
				Help:      "Gateway charge duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"gateway", "outcome"},
		),
		AmbiguousCharges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ambiguous_charges_total",
				Help:      "Total number of charges deferred to reconciliation",
			},
			[]string{"gateway"},
		),
		WebhooksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_processed_total",
				Help:      "Total number of webhook deliveries by result",
			},
			[]string{"result"},
		),
		OutcomeMismatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outcome_mismatches_total",
				Help:      "Reported outcomes that disagreed with a terminal transaction, any resolver",
			},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of outbox events published",
			},
			[]string{"kind"},
		),
		PublishRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_retries_total",
				Help:      "Total number of outbox publish retries",
			},
			[]string{"kind"},
		),
		StuckEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stuck_events_total",
				Help:      "Outbox entries whose attempts exceeded the alert threshold",
			},
		),
		PendingEvents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_events",
				Help:      "Outbox entries awaiting dispatch at last poll",
			},
		),
		ReconcileAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_attempts_total",
				Help:      "Total number of reconcile attempts by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
	}

	factory.MustRegister(
		m.TransactionsTotal,
		m.ChargeDuration,
		m.AmbiguousCharges,
		m.WebhooksProcessed,
		m.OutcomeMismatches,
		m.EventsPublished,
		m.PublishRetries,
		m.StuckEvents,
		m.PendingEvents,
		m.ReconcileAttempts,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
	)

	return m
}
