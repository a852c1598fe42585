package notify

import (
	"context"

	"github.com/gregdel/pushover"
)

// PushoverSink pushes events to a Pushover application.
type PushoverSink struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

func NewPushoverSink(token, userKey string) *PushoverSink {
	return &PushoverSink{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(userKey),
	}
}

func (p *PushoverSink) Name() string { return "pushover" }

func (p *PushoverSink) Send(_ context.Context, ev Event) error {
	msg := pushover.NewMessageWithTitle(ev.Body, ev.Subject)
	msg.Priority = priorityFor(ev.Severity)
	_, err := p.app.SendMessage(msg, p.recipient)
	return err
}

func priorityFor(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return pushover.PriorityHigh
	case SeverityWarning:
		return pushover.PriorityNormal
	default:
		return pushover.PriorityLow
	}
}
