package mnsync

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this package.
	MetricsSubsystem = "mnsync"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// SyncStage is the numeric id of the current sync stage.
	SyncStage metrics.Gauge
	// SyncProgress is the diagnostic progress fraction of the overall sync.
	SyncProgress metrics.Gauge
	// PeersAtSameHeight is the number of peers counted toward the
	// readiness quorum on the last evaluation.
	PeersAtSameHeight metrics.Gauge
	// StageFailures counts hard stage failures.
	StageFailures metrics.Counter
	// StageTimeouts counts stage timeouts, hard and soft.
	StageTimeouts metrics.Counter
	// RequestsSent counts outbound sync requests, labeled by kind.
	RequestsSent metrics.Counter
	// SkippedEvaluations counts readiness evaluations answered from cache.
	SkippedEvaluations metrics.Counter
}

// PrometheusMetrics returns Metrics built using the Prometheus client
// library. Optionally, labels can be provided along with their values
// ("foo", "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		SyncStage: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sync_stage",
			Help:      "The numeric id of the current sync stage.",
		}, labels).With(labelsAndValues...),
		SyncProgress: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sync_progress",
			Help:      "The diagnostic progress fraction of the overall sync.",
		}, labels).With(labelsAndValues...),
		PeersAtSameHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "peers_at_same_height",
			Help:      "The number of peers counted toward the readiness quorum.",
		}, labels).With(labelsAndValues...),
		StageFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "stage_failures",
			Help:      "The number of hard stage failures.",
		}, labels).With(labelsAndValues...),
		StageTimeouts: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "stage_timeouts",
			Help:      "The number of stage timeouts, hard and soft.",
		}, labels).With(labelsAndValues...),
		RequestsSent: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "requests_sent",
			Help:      "The number of outbound sync requests, by kind.",
		}, append(labels, "kind")).With(labelsAndValues...),
		SkippedEvaluations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "skipped_evaluations",
			Help:      "The number of readiness evaluations answered from cache.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		SyncStage:          discard.NewGauge(),
		SyncProgress:       discard.NewGauge(),
		PeersAtSameHeight:  discard.NewGauge(),
		StageFailures:      discard.NewCounter(),
		StageTimeouts:      discard.NewCounter(),
		RequestsSent:       discard.NewCounter(),
		SkippedEvaluations: discard.NewCounter(),
	}
}
