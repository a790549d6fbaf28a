// Package metrics holds the Prometheus collectors of the service on a
// private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cobrew"

var (
	registry = prometheus.NewRegistry()

	ApplicationsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "applications_submitted_total",
		Help:      "Applications submitted to projects.",
	})

	// ApplicationTransitions counts decision attempts by entry channel, target
	// status and result (ok, already_responded, forbidden, not_found, error).
	ApplicationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "application_transitions_total",
		Help:      "Application status transition attempts.",
	}, []string{"channel", "status", "result"})

	OutboxDispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_dispatches_total",
		Help:      "Outbox item executions by kind and result (done, retry, dead).",
	}, []string{"kind", "result"})

	OutboxDispatchSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_dispatch_seconds",
		Help:      "Duration of outbox handler executions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	WatchSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_watchers",
		Help:      "Open websocket watches of the pending application list.",
	})
)

//nolint:gochecknoinits // collectors are registered once per process
func init() {
	registry.MustRegister(
		ApplicationsSubmitted,
		ApplicationTransitions,
		OutboxDispatches,
		OutboxDispatchSeconds,
		WatchSubscribers,
		versioncollector.NewCollector(namespace),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func Registry() *prometheus.Registry {
	return registry
}
