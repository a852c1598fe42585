package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type recordingSink struct {
	name string
	sent []Event
	err  error
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(_ context.Context, ev Event) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, ev)
	return nil
}

func TestMultiFansOut(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	m := NewMulti(nil, 0, nil, a, b)

	m.Notify(context.Background(), Event{Kind: KindRuleSetChanged, Severity: SeverityInfo, Subject: "s"})

	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("fan-out: a=%d b=%d", len(a.sent), len(b.sent))
	}
	if a.sent[0].At.IsZero() {
		t.Fatal("timestamp not defaulted")
	}
}

func TestMultiSwallowsSinkFailure(t *testing.T) {
	broken := &recordingSink{name: "broken", err: errors.New("relay down")}
	ok := &recordingSink{name: "ok"}
	m := NewMulti(nil, 0, nil, broken, ok)

	// Must not panic or stop at the failing sink.
	m.Notify(context.Background(), Event{Kind: KindClassifierError, Severity: SeverityCritical})

	if len(ok.sent) != 1 {
		t.Fatal("healthy sink skipped after a failing one")
	}
}

func TestMultiThrottlesPerKind(t *testing.T) {
	sink := &recordingSink{name: "s"}
	m := NewMulti(nil, time.Hour, nil, sink)

	m.Notify(context.Background(), Event{Kind: KindClassifierError})
	m.Notify(context.Background(), Event{Kind: KindClassifierError})
	m.Notify(context.Background(), Event{Kind: KindRuleSetChanged})

	if len(sink.sent) != 2 {
		t.Fatalf("want 2 delivered (one per kind), got %d", len(sink.sent))
	}
}

func TestSMTPMessageFormat(t *testing.T) {
	s := &SMTPSink{From: "waf@example.com", To: []string{"ops@example.com"}}
	msg := s.message(Event{
		Kind:     KindRuleSetChanged,
		Severity: SeverityWarning,
		Subject:  "rule promoted",
		Body:     "942480 inactive -> active",
		At:       time.Date(2025, 6, 19, 4, 0, 0, 0, time.UTC),
	})

	for _, want := range []string{
		"Subject: [WARNING] rule promoted",
		"To: ops@example.com",
		"942480 inactive -> active",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}
