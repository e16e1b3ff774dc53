package txrequest

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "txrequest"
)

// Metrics contains metrics exposed by this package.
// see MetricsProvider for descriptions.
type Metrics struct {
	// Size of the announcement table.
	Size metrics.Gauge

	// Number of requests currently in flight.
	InFlight metrics.Gauge

	// Number of announcements received.
	AnnouncedTxs metrics.Counter

	// Number of requests handed to the network layer.
	RequestedTxs metrics.Counter

	// Number of in-flight requests that expired without a response.
	ExpiredTxs metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Size: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "size",
			Help:      "Size of the announcement table (number of tracked (tx, peer) pairs).",
		}, labels).With(labelsAndValues...),

		InFlight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "in_flight",
			Help:      "Number of transaction requests currently in flight.",
		}, labels).With(labelsAndValues...),

		AnnouncedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "announced_txs",
			Help:      "Number of transaction announcements accepted as candidates.",
		}, labels).With(labelsAndValues...),

		RequestedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "requested_txs",
			Help:      "Number of transaction requests handed to the network layer.",
		}, labels).With(labelsAndValues...),

		ExpiredTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "expired_txs",
			Help:      "Number of in-flight transaction requests that expired without a response.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Size:         discard.NewGauge(),
		InFlight:     discard.NewGauge(),
		AnnouncedTxs: discard.NewCounter(),
		RequestedTxs: discard.NewCounter(),
		ExpiredTxs:   discard.NewCounter(),
	}
}
