package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "forkpromoter"

const (
	runsMetricName          = "runs_total"
	stageDurationMetricName = "stage_duration_seconds"
	stageFailuresMetricName = "stage_failures_total"
)

const (
	outcomeLabel = "outcome"
	stageLabel   = "stage"
)

type metricCollector struct {
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		runs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      runsMetricName,
				Help:      "count of finished workflow runs per outcome",
			},
			[]string{outcomeLabel},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      stageDurationMetricName,
				Help:      "duration of workflow stages",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{stageLabel},
		),
		stageFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      stageFailuresMetricName,
				Help:      "count of failed workflow stages",
			},
			[]string{stageLabel},
		),
	}
}

func (m *metricCollector) RunFinished(outcome Outcome) {
	m.runs.With(prometheus.Labels{outcomeLabel: string(outcome)}).Inc()
}

func (m *metricCollector) StageFinished(stage StageName, startedAt time.Time) {
	m.stageDuration.With(prometheus.Labels{stageLabel: string(stage)}).
		Observe(time.Since(startedAt).Seconds())
}

func (m *metricCollector) StageFailed(stage StageName) {
	m.stageFailures.With(prometheus.Labels{stageLabel: string(stage)}).Inc()
}
