package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/glaucoscan/pkg/domain"
)

const namespace = "glaucoscan"

// Metrics holds the Prometheus collectors fed by the engine hooks.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	UploadRejections  *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	AnalysesScheduled prometheus.Counter
	AnalysesDiscarded prometheus.Counter
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Wizard phase transitions",
			},
			[]string{"from", "to"},
		),
		UploadRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_rejections_total",
				Help:      "Rejected uploads by reason",
			},
			[]string{"reason"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Time between starting and completing an analysis",
				Buckets:   []float64{0.5, 1, 2, 3, 4, 5, 10, 30},
			},
		),
		AnalysesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_scheduled_total",
			Help:      "Analysis timers scheduled",
		}),
		AnalysesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_discarded_total",
			Help:      "Analysis timers cancelled or found stale",
		}),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Transitions,
		m.UploadRejections,
		m.AnalysisDuration,
		m.AnalysesScheduled,
		m.AnalysesDiscarded,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
			if e.From == domain.PhaseAnalyzing && e.To == domain.PhaseComplete && e.Elapsed > 0 {
				m.AnalysisDuration.Observe(e.Elapsed.Seconds())
			}
		},
		OnUploadRejected: func(ctx context.Context, e *domain.UploadEvent) {
			m.UploadRejections.WithLabelValues(e.Reason).Inc()
		},
		OnAnalysisScheduled: func(ctx context.Context, e *domain.AnalysisEvent) {
			m.AnalysesScheduled.Inc()
		},
		OnAnalysisDiscarded: func(ctx context.Context, e *domain.AnalysisEvent) {
			m.AnalysesDiscarded.Inc()
		},
	}
}

// NewPendingTasksGauge reports the number of in-flight engine tasks.
func NewPendingTasksGauge(count func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_tasks",
			Help:      "File reads and analysis timers in flight",
		},
		func() float64 { return float64(count()) },
	)
}
