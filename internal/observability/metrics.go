package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	recordsTotal       *prometheus.CounterVec
	recordsSkipped     prometheus.Counter
	runsTotal          *prometheus.CounterVec
	hardeningCycles    *prometheus.CounterVec
	ruleTransitions    *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	confidence         prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "modlek_records_classified_total", Help: "Classified audit records"},
			[]string{"label"},
		),
		recordsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "modlek_records_skipped_total", Help: "Records skipped on per-record errors"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "modlek_classification_runs_total", Help: "Classification runs"},
			[]string{"status"},
		),
		hardeningCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "modlek_hardening_cycles_total", Help: "Hardening cycles"},
			[]string{"status"},
		),
		ruleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "modlek_rule_transitions_total", Help: "Rule state transitions"},
			[]string{"from", "to"},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "modlek_notifications_total", Help: "Notification attempts"},
			[]string{"kind", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modlek_run_duration_seconds",
				Help:    "Run duration by kind",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"kind"},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modlek_classification_confidence",
				Help:    "Confidence of the malicious class",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.recordsTotal,
		m.recordsSkipped,
		m.runsTotal,
		m.hardeningCycles,
		m.ruleTransitions,
		m.notificationsTotal,
		m.runDuration,
		m.confidence,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveClassification(label string, confidence float64) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(label).Inc()
	m.confidence.Observe(confidence)
}

func (m *Metrics) ObserveSkip() {
	if m == nil {
		return
	}
	m.recordsSkipped.Inc()
}

func (m *Metrics) ObserveRun(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	switch kind {
	case "harden":
		m.hardeningCycles.WithLabelValues(status).Inc()
	default:
		m.runsTotal.WithLabelValues(status).Inc()
	}
	m.runDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.ruleTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveNotification(kind, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}
