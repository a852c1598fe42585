package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maroof-I/modlek/internal/observability"
)

type Kind string

const (
	KindClassifierError           Kind = "ClassifierError"
	KindRuleSetChanged            Kind = "RuleSetChanged"
	KindSeverityThresholdExceeded Kind = "SeverityThresholdExceeded"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one alert. Events are observability, never a correctness
// dependency: every path that emits one keeps going whether or not it lands.
type Event struct {
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	At       time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Sink is one delivery transport. Errors are reported up for logging only.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Multi fans an event out to every sink, best-effort, with a per-kind
// throttle so a flapping condition cannot flood the transports.
type Multi struct {
	sinks    []Sink
	limiters map[Kind]*rate.Limiter
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewMulti(logger *zap.Logger, minInterval time.Duration, metrics *observability.Metrics, sinks ...Sink) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}

	limiters := make(map[Kind]*rate.Limiter)
	if minInterval > 0 {
		for _, kind := range []Kind{KindClassifierError, KindRuleSetChanged, KindSeverityThresholdExceeded} {
			limiters[kind] = rate.NewLimiter(rate.Every(minInterval), 1)
		}
	}

	return &Multi{sinks: sinks, limiters: limiters, metrics: metrics, logger: logger}
}

func (m *Multi) Notify(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	if lim, ok := m.limiters[ev.Kind]; ok && !lim.Allow() {
		m.metrics.ObserveNotification(string(ev.Kind), "throttled")
		m.logger.Debug("notification throttled", zap.String("kind", string(ev.Kind)))
		return
	}

	for _, sink := range m.sinks {
		if err := sink.Send(ctx, ev); err != nil {
			// Swallowed: a dead mail relay must not abort the cycle it is
			// reporting on.
			m.metrics.ObserveNotification(string(ev.Kind), "failed")
			m.logger.Warn("notification failed",
				zap.String("sink", sink.Name()),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
			continue
		}
		m.metrics.ObserveNotification(string(ev.Kind), "sent")
	}
}

// Nop is used where notifications are disabled.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
