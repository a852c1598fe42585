package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/runlog"
)

const (
	subjectTriggerClassify = "modlek.trigger.classify"
	subjectTriggerHarden   = "modlek.trigger.harden"
	subjectRunsPrefix      = "modlek.runs."
)

// Bus bridges the orchestrator to NATS: operators can trigger a run out of
// cadence, and every finished run is published for external consumers. The
// bus is strictly optional; a nil *Bus disables both directions.
type Bus struct {
	nc     *nats.Conn
	logger *zap.Logger
	subs   []*nats.Subscription
}

func NewBus(url string, logger *zap.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("modlek"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{nc: nc, logger: logger}, nil
}

// SubscribeTriggers delivers the job kind on out whenever a trigger subject
// fires. Sends are non-blocking; a trigger that arrives while the channel is
// full is dropped, since a run is already pending.
func (b *Bus) SubscribeTriggers(out chan<- string) error {
	if b == nil {
		return nil
	}
	for subject, kind := range map[string]string{
		subjectTriggerClassify: runlog.KindClassify,
		subjectTriggerHarden:   runlog.KindHarden,
	} {
		kind := kind
		sub, err := b.nc.Subscribe(subject, func(*nats.Msg) {
			select {
			case out <- kind:
			default:
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

// PublishRun emits the finished run record on modlek.runs.<kind>.
func (b *Bus) PublishRun(rec runlog.Record) {
	if b == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		b.logger.Warn("marshal run record", zap.Error(err))
		return
	}
	if err := b.nc.Publish(subjectRunsPrefix+rec.Kind, data); err != nil {
		b.logger.Warn("publish run record",
			zap.String("kind", rec.Kind),
			zap.Error(err))
	}
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	_ = b.nc.Drain()
}
