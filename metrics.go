package dealerrfq

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "dealer_client"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of quotes parsed successfully.
	Quotes metrics.Counter
	// Number of quote requests refused, malformed or lost in transport.
	QuoteErrors metrics.Counter
	// Number of fills stopped by a precondition, by check.
	ValidationFailures metrics.Counter
	// Number of fills that could not be signed.
	SigningFailures metrics.Counter
	// Number of submitted fills, by outcome.
	Fills metrics.Counter
	// Time from fill submission to the dealer's answer, in seconds.
	SubmitDuration metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Quotes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "quotes",
			Help:      "Number of dealer quotes parsed.",
		}, []string{}),
		QuoteErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "quote_errors",
			Help:      "Number of failed quote requests.",
		}, []string{}),
		ValidationFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "validation_failures",
			Help:      "Number of fills rejected locally by a precondition.",
		}, []string{"check"}),
		SigningFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "signing_failures",
			Help:      "Number of fills the signer refused or could not sign.",
		}, []string{}),
		Fills: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "fills",
			Help:      "Number of fills submitted to the dealer, by outcome.",
		}, []string{"outcome"}),
		SubmitDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "submit_duration_seconds",
			Help:      "Dealer fill submission latency in seconds.",
			Buckets:   stdprometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Quotes:             discard.NewCounter(),
		QuoteErrors:        discard.NewCounter(),
		ValidationFailures: discard.NewCounter(),
		SigningFailures:    discard.NewCounter(),
		Fills:              discard.NewCounter(),
		SubmitDuration:     discard.NewHistogram(),
	}
}
