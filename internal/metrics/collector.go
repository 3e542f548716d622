package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector gathers pipeline execution metrics.
type Collector struct {
	// Flow metrics
	flowRunsTotal *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec

	// Crew metrics
	crewTaskDuration *prometheus.HistogramVec
	crewKickoffs     *prometheus.CounterVec

	// Lead metrics
	itemsProcessed *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on reg. Pass
// prometheus.DefaultRegisterer in production; tests should pass their own
// registry to avoid duplicate registration.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.flowRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Total number of flow kickoffs by terminal status",
		},
		[]string{"flow", "status"},
	)

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage body execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"flow", "stage", "status"},
	)

	c.crewTaskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crew_task_duration_seconds",
			Help:      "Crew task execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"crew", "task", "status"},
	)

	c.crewKickoffs = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crew_kickoffs_total",
			Help:      "Total number of per-item crew kickoffs by status",
		},
		[]string{"crew", "status"},
	)

	c.itemsProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_items_total",
			Help:      "Number of items emitted by each stage",
		},
		[]string{"flow", "stage"},
	)

	return c
}

// ObserveFlowRun records one completed flow kickoff.
func (c *Collector) ObserveFlowRun(flow, status string) {
	c.flowRunsTotal.WithLabelValues(flow, status).Inc()
}

// ObserveStage records one stage body execution.
func (c *Collector) ObserveStage(flow, stage, status string, d time.Duration) {
	c.stageDuration.WithLabelValues(flow, stage, status).Observe(d.Seconds())
}

// ObserveCrewTask records one crew task execution.
func (c *Collector) ObserveCrewTask(crew, task, status string, d time.Duration) {
	c.crewTaskDuration.WithLabelValues(crew, task, status).Observe(d.Seconds())
}

// ObserveCrewKickoff records one per-item crew run.
func (c *Collector) ObserveCrewKickoff(crew, status string) {
	c.crewKickoffs.WithLabelValues(crew, status).Inc()
}

// AddStageItems records the size of a stage's output collection.
func (c *Collector) AddStageItems(flow, stage string, n int) {
	c.itemsProcessed.WithLabelValues(flow, stage).Add(float64(n))
}
