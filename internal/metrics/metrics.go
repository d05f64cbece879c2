// Package metrics wires internal/supervisor's metrics seams to Prometheus
// collectors, following the teacher's promauto vector convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements both supervisor.WorkerMetrics and
// supervisor.GroupMetrics against a shared set of vectors.
type Collector struct {
	backlogEstimate   *prometheus.GaugeVec
	workerCount       *prometheus.GaugeVec
	scaleDecisions    *prometheus.CounterVec
	recordsProjected  *prometheus.CounterVec
	scheduleCalls     *prometheus.CounterVec
}

// NewCollector registers the sourcewatch metric family against reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		backlogEstimate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sourcewatch",
			Name:      "backlog_estimate",
			Help:      "Most recent mean per-partition backlog estimate for a source.",
		}, []string{"source"}),
		workerCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sourcewatch",
			Name:      "worker_count",
			Help:      "Current number of live consumer workers for a source.",
		}, []string{"source"}),
		scaleDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcewatch",
			Name:      "scale_decisions_total",
			Help:      "Total autoscaler decisions, by source and decision kind.",
		}, []string{"source", "decision"}),
		recordsProjected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcewatch",
			Name:      "records_projected_total",
			Help:      "Total records processed by the projector, by source and outcome.",
		}, []string{"source", "outcome"}),
		scheduleCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcewatch",
			Name:      "schedule_calls_total",
			Help:      "Total scheduler calls, by source and outcome.",
		}, []string{"source", "outcome"}),
	}
}

// BacklogSample implements supervisor.GroupMetrics.
func (c *Collector) BacklogSample(source string, value float64) {
	c.backlogEstimate.WithLabelValues(source).Set(value)
}

// WorkerCount implements supervisor.GroupMetrics.
func (c *Collector) WorkerCount(source string, n int) {
	c.workerCount.WithLabelValues(source).Set(float64(n))
}

// ScaleDecision implements supervisor.GroupMetrics.
func (c *Collector) ScaleDecision(source, decision string) {
	c.scaleDecisions.WithLabelValues(source, decision).Inc()
}

// ProjectionDropped implements supervisor.WorkerMetrics.
func (c *Collector) ProjectionDropped(source string) {
	c.recordsProjected.WithLabelValues(source, "dropped").Inc()
}

// DuplicateDropped implements supervisor.WorkerMetrics.
func (c *Collector) DuplicateDropped(source string) {
	c.recordsProjected.WithLabelValues(source, "duplicate").Inc()
}

// ScheduleAccepted implements supervisor.WorkerMetrics.
func (c *Collector) ScheduleAccepted(source string) {
	c.recordsProjected.WithLabelValues(source, "accepted").Inc()
	c.scheduleCalls.WithLabelValues(source, "accepted").Inc()
}

// ScheduleRejected implements supervisor.WorkerMetrics.
func (c *Collector) ScheduleRejected(source string) {
	c.scheduleCalls.WithLabelValues(source, "rejected").Inc()
}
