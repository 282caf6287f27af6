package transport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds worldcore's own Prometheus collectors. Purpose-built for
// this domain (connections, verb invocations, gas) rather than reusing the
// teacher's much larger oracle/automation/datafeed metrics set, which has
// no equivalent surface here (see DESIGN.md).
var Registry = prometheus.NewRegistry()

var (
	connectionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worldcore",
		Subsystem: "transport",
		Name:      "connections_open",
		Help:      "Current number of open player websocket connections.",
	})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worldcore",
		Subsystem: "transport",
		Name:      "requests_total",
		Help:      "Total execute requests handled, by outcome.",
	}, []string{"outcome"})

	verbDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "worldcore",
		Subsystem: "transport",
		Name:      "verb_duration_seconds",
		Help:      "Wall time spent evaluating one dispatched verb call.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(connectionsOpen, requestsTotal, verbDuration)
}

// MetricsHandler exposes the registry over HTTP for the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
