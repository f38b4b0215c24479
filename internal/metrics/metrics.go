// Package metrics exposes Prometheus counters and gauges for the
// notification pipeline and subscription reconciler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus instruments on a dedicated registry.
type Metrics struct {
	registry                 *prometheus.Registry
	notificationsSentTotal   prometheus.Counter
	duplicatesTotal          prometheus.Counter
	deliveryFailuresTotal    prometheus.Counter
	callbackRequestsTotal    prometheus.Counter
	invalidSignaturesTotal   prometheus.Counter
	subscribesTotal          prometheus.Counter
	unsubscribesTotal        prometheus.Counter
	reconcileAbortsTotal     prometheus.Counter
	activeSubscriptionsGauge prometheus.Gauge
}

// New creates and registers the instrument set.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	notificationsSentTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_notifications_sent_total",
		Help: "Total number of notifications delivered to the webhook",
	})
	duplicatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_duplicates_suppressed_total",
		Help: "Total number of notifications suppressed by the dedup record",
	})
	deliveryFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_delivery_failures_total",
		Help: "Total number of webhook delivery attempts that failed",
	})
	callbackRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_callback_requests_total",
		Help: "Total number of hub callback requests received",
	})
	invalidSignaturesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_invalid_signatures_total",
		Help: "Total number of callback bodies rejected for a bad HMAC signature",
	})
	subscribesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_hub_subscribes_total",
		Help: "Total number of subscribe requests sent to the hub",
	})
	unsubscribesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_hub_unsubscribes_total",
		Help: "Total number of unsubscribe requests sent to the hub",
	})
	reconcileAbortsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tubewatch_reconcile_rate_limit_aborts_total",
		Help: "Total number of reconcile cycles abandoned after hub rate limiting",
	})
	activeSubscriptionsGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tubewatch_active_subscriptions",
		Help: "Number of hub-verified channel subscriptions on record",
	})

	registry.MustRegister(
		notificationsSentTotal,
		duplicatesTotal,
		deliveryFailuresTotal,
		callbackRequestsTotal,
		invalidSignaturesTotal,
		subscribesTotal,
		unsubscribesTotal,
		reconcileAbortsTotal,
		activeSubscriptionsGauge,
	)

	return &Metrics{
		registry:                 registry,
		notificationsSentTotal:   notificationsSentTotal,
		duplicatesTotal:          duplicatesTotal,
		deliveryFailuresTotal:    deliveryFailuresTotal,
		callbackRequestsTotal:    callbackRequestsTotal,
		invalidSignaturesTotal:   invalidSignaturesTotal,
		subscribesTotal:          subscribesTotal,
		unsubscribesTotal:        unsubscribesTotal,
		reconcileAbortsTotal:     reconcileAbortsTotal,
		activeSubscriptionsGauge: activeSubscriptionsGauge,
	}
}

// IncNotificationsSent increments the delivered-notification counter.
func (m *Metrics) IncNotificationsSent() {
	if m != nil {
		m.notificationsSentTotal.Inc()
	}
}

// IncDuplicatesSuppressed increments the dedup-suppression counter.
func (m *Metrics) IncDuplicatesSuppressed() {
	if m != nil {
		m.duplicatesTotal.Inc()
	}
}

// IncDeliveryFailures increments the webhook failure counter.
func (m *Metrics) IncDeliveryFailures() {
	if m != nil {
		m.deliveryFailuresTotal.Inc()
	}
}

// IncCallbackRequests increments the callback request counter.
func (m *Metrics) IncCallbackRequests() {
	if m != nil {
		m.callbackRequestsTotal.Inc()
	}
}

// IncInvalidSignatures increments the rejected-signature counter.
func (m *Metrics) IncInvalidSignatures() {
	if m != nil {
		m.invalidSignaturesTotal.Inc()
	}
}

// IncSubscribes increments the hub subscribe counter.
func (m *Metrics) IncSubscribes() {
	if m != nil {
		m.subscribesTotal.Inc()
	}
}

// IncUnsubscribes increments the hub unsubscribe counter.
func (m *Metrics) IncUnsubscribes() {
	if m != nil {
		m.unsubscribesTotal.Inc()
	}
}

// IncReconcileAborts increments the abandoned-cycle counter.
func (m *Metrics) IncReconcileAborts() {
	if m != nil {
		m.reconcileAbortsTotal.Inc()
	}
}

// SetActiveSubscriptions sets the active subscription gauge.
func (m *Metrics) SetActiveSubscriptions(n int) {
	if m != nil {
		m.activeSubscriptionsGauge.Set(float64(n))
	}
}

// Handler serves the registry in Prometheus exposition format.
// updateGauges, when non-nil, runs before each scrape to refresh gauges.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
